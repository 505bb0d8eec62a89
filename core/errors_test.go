package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type name string

func (n name) String() string { return string(n) }

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&RangeError{What: "row", Start: 0, End: 10, Extent: 5}, ErrRange},
		{&SizeMismatchError{Expected: 4, Actual: 3}, ErrRange},
		{&OverflowError{Op: "*", A: 1 << 40, B: 1 << 40}, ErrOverflow},
		{&ConversionError{From: name("a"), To: name("b")}, ErrInvalidArgument},
		{Unsupported("csr", "pull column"), ErrUnsupported},
		{Domainf("row count %d", -1), ErrDomain},
		{InvalidArgumentf("bad"), ErrInvalidArgument},
		{Capabilityf("read-only"), ErrCapability},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}
}

func TestErrorMessages(t *testing.T) {
	err := &RangeError{What: "column", Start: 2, End: 7, Extent: 4}
	assert.Equal(t, "column range [2, 7) exceeds extent 4", err.Error())

	var re *RangeError
	assert.True(t, errors.As(fmt.Errorf("pull: %w", err), &re))
	assert.Equal(t, int64(4), re.Extent)

	assert.False(t, errors.Is(err, ErrOverflow))
}
