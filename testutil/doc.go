// Package testutil provides testing utilities for tabula.
//
// This package is intended for use in tests and benchmarks only.
// It provides seeded random fillers for every element type and random
// sparse structures.
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	col := make([]int16, 128)
//	testutil.Fill(rng, col)           // full range of int16
//	testutil.FillRange(rng, col, 0, 9) // [0, 9]
//
// # Sparse Structure
//
//	values, colIdx, rowOff := testutil.RandomCSR[float32](rng, rows, cols, 0.1)
package testutil
