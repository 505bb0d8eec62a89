package resource

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned by TryAcquireMemory callers when a memory
// pool has no room left for an allocation.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Pool identifies the memory pool an allocation is charged to.
type Pool uint8

const (
	// HostPool covers pageable and pinned host memory.
	HostPool Pool = iota
	// DevicePool covers accelerator-only and accelerator-shared memory.
	DevicePool
	numPools
)

func (p Pool) String() string {
	switch p {
	case HostPool:
		return "host"
	case DevicePool:
		return "device"
	default:
		return fmt.Sprintf("pool(%d)", uint8(p))
	}
}

// Config holds resource limits.
type Config struct {
	// HostMemoryLimitBytes is the hard limit for buffer allocations in host memory.
	// If 0, no hard limit is enforced (only tracking).
	HostMemoryLimitBytes int64

	// DeviceMemoryLimitBytes is the hard limit for accelerator allocations.
	// If 0, no hard limit is enforced (only tracking).
	DeviceMemoryLimitBytes int64

	// MaxWorkers is the maximum number of concurrent conversion workers.
	// If 0, defaults to 1.
	MaxWorkers int64

	// TransferLimitBytesPerSec throttles host<->device staging transfers.
	// If 0, unlimited.
	TransferLimitBytesPerSec int64
}

// Controller budgets memory per pool, worker slots and transfer bandwidth.
type Controller struct {
	cfg Config

	memSem  [numPools]*semaphore.Weighted // nil if unlimited
	memUsed [numPools]atomic.Int64

	workerSem *semaphore.Weighted

	transferLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}

	c := &Controller{
		cfg:       cfg,
		workerSem: semaphore.NewWeighted(cfg.MaxWorkers),
	}

	if cfg.HostMemoryLimitBytes > 0 {
		c.memSem[HostPool] = semaphore.NewWeighted(cfg.HostMemoryLimitBytes)
	}
	if cfg.DeviceMemoryLimitBytes > 0 {
		c.memSem[DevicePool] = semaphore.NewWeighted(cfg.DeviceMemoryLimitBytes)
	}

	if cfg.TransferLimitBytesPerSec > 0 {
		c.transferLimiter = rate.NewLimiter(rate.Limit(cfg.TransferLimitBytesPerSec), int(cfg.TransferLimitBytesPerSec))
	}

	return c
}

// limit returns the hard limit of pool p, or 0 when it is unlimited.
func (c *Controller) limit(p Pool) int64 {
	switch p {
	case HostPool:
		return c.cfg.HostMemoryLimitBytes
	case DevicePool:
		return c.cfg.DeviceMemoryLimitBytes
	default:
		return 0
	}
}

// AcquireMemory reserves bytes in pool p.
// If a hard limit is configured and usage would exceed it,
// this blocks until memory is available or ctx is canceled. A request
// larger than the limit itself can never succeed and fails at once.
func (c *Controller) AcquireMemory(ctx context.Context, p Pool, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if sem := c.memSem[p]; sem != nil {
		if limit := c.limit(p); bytes > limit {
			return fmt.Errorf("%w: %s pool: %d bytes requested, limit is %d", ErrMemoryLimitExceeded, p, bytes, limit)
		}
		if err := sem.Acquire(ctx, bytes); err != nil {
			return fmt.Errorf("%w: %s pool: %w", ErrMemoryLimitExceeded, p, err)
		}
	}

	c.memUsed[p].Add(bytes)
	return nil
}

// TryAcquireMemory reserves bytes in pool p without blocking.
// Returns false if the limit would be exceeded.
func (c *Controller) TryAcquireMemory(p Pool, bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if sem := c.memSem[p]; sem != nil {
		if !sem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed[p].Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(p Pool, bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if sem := c.memSem[p]; sem != nil {
		sem.Release(bytes)
	}
	c.memUsed[p].Add(-bytes)
}

// MemoryUsage returns the bytes currently reserved in pool p.
func (c *Controller) MemoryUsage(p Pool) int64 {
	if c == nil {
		return 0
	}
	return c.memUsed[p].Load()
}

// MaxWorkers returns the configured worker limit.
func (c *Controller) MaxWorkers() int {
	if c == nil {
		return 0
	}
	return int(c.cfg.MaxWorkers)
}

// AcquireWorker reserves a worker slot, blocking while all slots are busy.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.workerSem.Acquire(ctx, 1)
}

// TryAcquireWorker reserves a worker slot without blocking.
func (c *Controller) TryAcquireWorker() bool {
	if c == nil {
		return true
	}
	return c.workerSem.TryAcquire(1)
}

// ReleaseWorker releases a worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.workerSem.Release(1)
}

// AcquireTransfer waits until the transfer limit admits bytes.
// Requests larger than the burst are admitted in burst-sized steps.
func (c *Controller) AcquireTransfer(ctx context.Context, bytes int) error {
	if c == nil || c.transferLimiter == nil || bytes <= 0 {
		return nil
	}
	burst := c.transferLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.transferLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// TryAcquireTransfer reports whether bytes can be transferred right now.
func (c *Controller) TryAcquireTransfer(bytes int) bool {
	if c == nil || c.transferLimiter == nil {
		return true
	}
	return c.transferLimiter.AllowN(time.Now(), bytes)
}
