package mem

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllocAligned(t *testing.T) {
	sizes := []int{1, 10, 63, 64, 65, 100, 1024}

	for _, size := range sizes {
		buf := AllocAligned(size)
		assert.Len(t, buf, size)
		assert.Equal(t, size, cap(buf), "capacity must not leak the padding")
		assert.True(t, IsAligned(buf, Alignment), "size %d", size)
	}

	assert.Nil(t, AllocAligned(0))
	assert.Nil(t, AllocAligned(-1))
}

func TestAlloc_CustomAlignment(t *testing.T) {
	for _, align := range []int{1, 2, 8, 16, 4096} {
		buf := Alloc(33, align)
		assert.Len(t, buf, 33)
		assert.True(t, IsAligned(buf, align), "align %d", align)
	}
}

func TestIsAligned(t *testing.T) {
	buf := AllocAligned(16)
	assert.True(t, IsAligned(buf, 8))
	assert.False(t, IsAligned(buf[1:], 8))
	assert.True(t, IsAligned(nil, 8))
}

func BenchmarkAllocAligned(b *testing.B) {
	sizes := []int{64, 256, 1024, 4096}
	for _, size := range sizes {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = AllocAligned(size)
			}
		})
	}
}
