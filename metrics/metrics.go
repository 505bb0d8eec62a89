// Package metrics defines the operational metrics hooks of tables and the
// conversion engine.
package metrics

import (
	"sync/atomic"
	"time"
)

// Collector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see the
// prometheus subpackage for a ready-made adapter.
type Collector interface {
	// RecordPull is called after each block pull. aliased is true when the
	// block is a view of table storage rather than a converted copy.
	RecordPull(table string, elements int, aliased bool, duration time.Duration, err error)

	// RecordPush is called after each block push.
	RecordPush(table string, elements int, duration time.Duration, err error)

	// RecordConversion is called once per dispatched (source, destination)
	// element type group.
	RecordConversion(from, to string, elements int, duration time.Duration)

	// RecordTransfer is called after each staged host/device transfer.
	RecordTransfer(direction string, bytes int, duration time.Duration)
}

// NoopCollector is a no-op implementation of Collector.
type NoopCollector struct{}

func (NoopCollector) RecordPull(string, int, bool, time.Duration, error)  {}
func (NoopCollector) RecordPush(string, int, time.Duration, error)        {}
func (NoopCollector) RecordConversion(string, string, int, time.Duration) {}
func (NoopCollector) RecordTransfer(string, int, time.Duration)           {}

// OrNoop returns c, or a NoopCollector when c is nil.
func OrNoop(c Collector) Collector {
	if c == nil {
		return NoopCollector{}
	}
	return c
}

// BasicCollector provides simple in-memory metrics collection.
type BasicCollector struct {
	PullCount          atomic.Int64
	PullAliased        atomic.Int64
	PullErrors         atomic.Int64
	PullElements       atomic.Int64
	PullTotalNanos     atomic.Int64
	PushCount          atomic.Int64
	PushErrors         atomic.Int64
	PushElements       atomic.Int64
	ConversionGroups   atomic.Int64
	ConversionElements atomic.Int64
	ConversionNanos    atomic.Int64
	TransferCount      atomic.Int64
	TransferBytes      atomic.Int64
	TransferTotalNanos atomic.Int64
}

// RecordPull implements Collector.
func (b *BasicCollector) RecordPull(_ string, elements int, aliased bool, duration time.Duration, err error) {
	b.PullCount.Add(1)
	b.PullTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PullErrors.Add(1)
		return
	}
	b.PullElements.Add(int64(elements))
	if aliased {
		b.PullAliased.Add(1)
	}
}

// RecordPush implements Collector.
func (b *BasicCollector) RecordPush(_ string, elements int, _ time.Duration, err error) {
	b.PushCount.Add(1)
	if err != nil {
		b.PushErrors.Add(1)
		return
	}
	b.PushElements.Add(int64(elements))
}

// RecordConversion implements Collector.
func (b *BasicCollector) RecordConversion(_, _ string, elements int, duration time.Duration) {
	b.ConversionGroups.Add(1)
	b.ConversionElements.Add(int64(elements))
	b.ConversionNanos.Add(duration.Nanoseconds())
}

// RecordTransfer implements Collector.
func (b *BasicCollector) RecordTransfer(_ string, bytes int, duration time.Duration) {
	b.TransferCount.Add(1)
	b.TransferBytes.Add(int64(bytes))
	b.TransferTotalNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicCollector) GetStats() BasicStats {
	return BasicStats{
		PullCount:          b.PullCount.Load(),
		PullAliased:        b.PullAliased.Load(),
		PullErrors:         b.PullErrors.Load(),
		PullElements:       b.PullElements.Load(),
		PullAvgNanos:       avg(b.PullTotalNanos.Load(), b.PullCount.Load()),
		PushCount:          b.PushCount.Load(),
		PushErrors:         b.PushErrors.Load(),
		PushElements:       b.PushElements.Load(),
		ConversionGroups:   b.ConversionGroups.Load(),
		ConversionElements: b.ConversionElements.Load(),
		TransferCount:      b.TransferCount.Load(),
		TransferBytes:      b.TransferBytes.Load(),
		TransferAvgNanos:   avg(b.TransferTotalNanos.Load(), b.TransferCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicStats is a snapshot of BasicCollector state.
type BasicStats struct {
	PullCount          int64
	PullAliased        int64
	PullErrors         int64
	PullElements       int64
	PullAvgNanos       int64
	PushCount          int64
	PushErrors         int64
	PushElements       int64
	ConversionGroups   int64
	ConversionElements int64
	TransferCount      int64
	TransferBytes      int64
	TransferAvgNanos   int64
}
