package resource

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{HostMemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(context.Background(), HostPool, 50))
	assert.Equal(t, int64(50), c.MemoryUsage(HostPool))

	require.NoError(t, c.AcquireMemory(context.Background(), HostPool, 40))
	assert.Equal(t, int64(90), c.MemoryUsage(HostPool))

	assert.False(t, c.TryAcquireMemory(HostPool, 20))
	assert.Equal(t, int64(90), c.MemoryUsage(HostPool))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := c.AcquireMemory(ctx, HostPool, 20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.ReleaseMemory(HostPool, 50)
	assert.Equal(t, int64(40), c.MemoryUsage(HostPool))

	require.NoError(t, c.AcquireMemory(context.Background(), HostPool, 20))
	assert.Equal(t, int64(60), c.MemoryUsage(HostPool))
}

func TestController_RequestAboveLimit(t *testing.T) {
	c := NewController(Config{HostMemoryLimitBytes: 64, DeviceMemoryLimitBytes: 8})

	err := c.AcquireMemory(context.Background(), HostPool, 128)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.NotErrorIs(t, err, context.Canceled)
	assert.Zero(t, c.MemoryUsage(HostPool))

	assert.ErrorIs(t, c.AcquireMemory(context.Background(), DevicePool, 9), ErrMemoryLimitExceeded)
	require.NoError(t, c.AcquireMemory(context.Background(), DevicePool, 8))
}

func TestController_PoolsAreIndependent(t *testing.T) {
	c := NewController(Config{DeviceMemoryLimitBytes: 10})

	assert.True(t, c.TryAcquireMemory(HostPool, 1000))
	assert.True(t, c.TryAcquireMemory(DevicePool, 10))
	assert.False(t, c.TryAcquireMemory(DevicePool, 1))
	assert.Equal(t, int64(1000), c.MemoryUsage(HostPool))
	assert.Equal(t, int64(10), c.MemoryUsage(DevicePool))
}

func TestController_Workers(t *testing.T) {
	c := NewController(Config{MaxWorkers: 2})
	assert.Equal(t, 2, c.MaxWorkers())

	require.NoError(t, c.AcquireWorker(context.Background()))
	require.NoError(t, c.AcquireWorker(context.Background()))
	assert.False(t, c.TryAcquireWorker())

	c.ReleaseWorker()
	assert.True(t, c.TryAcquireWorker())
}

func TestController_NilIsNoop(t *testing.T) {
	var c *Controller
	assert.NoError(t, c.AcquireMemory(context.Background(), DevicePool, 1<<40))
	assert.True(t, c.TryAcquireMemory(HostPool, 1))
	assert.NoError(t, c.AcquireTransfer(context.Background(), 1<<20))
	assert.NoError(t, c.AcquireWorker(context.Background()))
	assert.Equal(t, int64(0), c.MemoryUsage(HostPool))
}

func TestController_Transfer(t *testing.T) {
	c := NewController(Config{TransferLimitBytesPerSec: 1 << 20})
	// Burst covers the first request immediately.
	assert.True(t, c.TryAcquireTransfer(1024))
	require.NoError(t, c.AcquireTransfer(context.Background(), 1024))
}

func TestThrottle(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	// Without a transfer limit the streams are returned as is.
	assert.Same(t, &buf, ThrottleWriter(ctx, &buf, nil).(*bytes.Buffer))
	assert.Same(t, &buf, ThrottleReader(ctx, &buf, NewController(Config{})).(*bytes.Buffer))

	c := NewController(Config{TransferLimitBytesPerSec: 1 << 20})
	w := ThrottleWriter(ctx, &buf, c)
	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)

	got, err := io.ReadAll(ThrottleReader(ctx, &buf, c))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = ThrottleWriter(cancelled, &buf, c).Write(make([]byte, 2<<20))
	assert.ErrorIs(t, err, context.Canceled)
}
