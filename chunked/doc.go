// Package chunked implements Array, a segmented buffer: one logical sequence
// of elements spread over several memory.Buffer chunks.
//
// Slicing an Array is O(chunk count) and never copies; Flatten produces one
// contiguous Buffer, aliasing when the chunks already describe one region.
// Heterogeneous tables keep each column in an Array.
package chunked
