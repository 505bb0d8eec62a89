// Package convert is the conversion engine behind every table pull and push
// that cannot alias storage.
//
// Callers describe work as Jobs: one-dimensional, possibly strided copies
// between two buffers. Engine.Run checks all jobs up front (bounds, overflow,
// element types), buckets them by (source, destination) element type and
// runs each bucket through one kernel instantiated for that pair, so the
// element type is resolved once per bucket and never per element.
//
// Numeric semantics are Go conversions: widening is exact, narrowing
// truncates, and out-of-range float to integer conversions are
// implementation-defined and unchecked.
//
// Host work runs on the calling goroutine and fans out over a
// policy.WorkerPool for large buckets. Work touching device-only memory is
// submitted to the policy's queue; host/device jobs are staged through a
// pinned scratch buffer.
package convert
