// Package mem provides memory allocation utilities.
//
// # Aligned Allocation
//
// Host buffers are allocated on 64-byte boundaries so that any element type
// view is naturally aligned and bulk conversion loops start on a cache line.
package mem
