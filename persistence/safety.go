package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
)

// ErrBigEndian is returned on big-endian machines. Table files store
// elements little-endian and decoded buffers view them in place.
var ErrBigEndian = errors.New("big-endian platforms are not supported")

func checkPlatform() error {
	var word [2]byte
	binary.NativeEndian.PutUint16(word[:], 1)
	if word[0] != 1 {
		return fmt.Errorf("%w: %s", ErrBigEndian, runtime.GOARCH)
	}
	return nil
}
