// Package conv provides overflow-checked integer arithmetic and conversions.
//
// Every count, byte size, offset and stride computed by tables and by the
// conversion engine goes through these helpers before any memory is touched.
// A failing check returns a *core.OverflowError (errors.Is core.ErrOverflow).
//
// For arithmetic that is provably bounded by an earlier check (loop indices
// inside a validated block), use plain operators instead.
package conv
