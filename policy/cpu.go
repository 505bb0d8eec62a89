package policy

import (
	"runtime"
	"sync"

	"golang.org/x/sys/cpu"
)

// VectorWidth is the widest SIMD register class the host exposes.
type VectorWidth uint8

const (
	// Scalar means no usable vector extension was detected.
	Scalar VectorWidth = iota
	// Vec128 covers SSE4.2 and ARM64 ASIMD.
	Vec128
	// Vec256 covers AVX2.
	Vec256
	// Vec512 covers AVX-512F.
	Vec512
)

func (w VectorWidth) String() string {
	switch w {
	case Vec128:
		return "128"
	case Vec256:
		return "256"
	case Vec512:
		return "512"
	default:
		return "scalar"
	}
}

// Bytes returns the register width in bytes (8 for Scalar).
func (w VectorWidth) Bytes() int {
	switch w {
	case Vec128:
		return 16
	case Vec256:
		return 32
	case Vec512:
		return 64
	default:
		return 8
	}
}

// HostCapabilities describes the CPU the host policy runs on.
type HostCapabilities struct {
	Arch   string
	CPUs   int
	Vector VectorWidth
}

var (
	capsOnce sync.Once
	caps     HostCapabilities
)

// Capabilities returns the detected host capabilities.
func Capabilities() HostCapabilities {
	capsOnce.Do(func() {
		caps = HostCapabilities{
			Arch:   runtime.GOARCH,
			CPUs:   runtime.NumCPU(),
			Vector: detectVector(),
		}
	})
	return caps
}

func detectVector() VectorWidth {
	switch {
	case cpu.X86.HasAVX512F:
		return Vec512
	case cpu.X86.HasAVX2:
		return Vec256
	case cpu.X86.HasSSE42, cpu.ARM64.HasASIMD:
		return Vec128
	default:
		return Scalar
	}
}

// minGrainBytes is the smallest host range worth handing to another
// goroutine; below it scheduling costs more than the conversion.
const minGrainBytes = 64 << 10

// GrainSize returns the number of elements per ParallelFor range for a
// conversion touching elemBytes bytes per element (source plus destination).
func (c HostCapabilities) GrainSize(elemBytes int) int {
	if elemBytes <= 0 {
		elemBytes = 1
	}
	// Wider vectors chew through a range faster; give them more per range.
	bytes := minGrainBytes * max(1, c.Vector.Bytes()/16)
	return max(1, bytes/elemBytes)
}
