// Package interop converts between tables and the matrix types of gonum
// and github.com/james-bowman/sparse.
//
// FromDense wraps a contiguous mat.Dense without copying, so writes through
// the table are visible in the matrix and the other way round. The To*
// functions always copy: the returned matrices own their storage and stay
// valid after the table is released.
package interop
