// Package policy describes where table memory lives and where operations on
// it run.
//
// AllocKind tags memory as pageable host, pinned host, accelerator-only or
// shared. NeedsCopy decides whether memory of one kind can stand in for a
// request of another, which is the memory half of every alias-or-copy
// decision made when pulling blocks from a table.
//
// A Policy pairs an allocation kind with an execution context. Host policies
// run synchronously; queue policies submit work to a Queue and hand back an
// Event. Dependencies between queued operations are always explicit: pass
// earlier events to Policy.After.
//
// The accelerator is SimulatedDevice: its memory lives in the Go heap, and
// device-only allocations are fenced off from host views by the memory
// package, so code paths that stage through pinned scratch memory are real.
package policy
