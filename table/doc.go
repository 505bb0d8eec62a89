// Package table provides type-erased tables and the block-access protocol
// used to read and write them.
//
// Four backends implement Table:
//
//   - Homogen: one element type, one buffer, row- or column-major.
//   - Heterogen: one chunked array per column, each with its own type.
//   - CSR: compressed sparse rows; served through PullCSR.
//   - EmptyTable: no rows, no columns.
//
// A pull hands out a block over a row range in the requested element type
// and memory kind. Blocks alias table storage when they can and are filled
// by the conversion engine when they cannot:
//
//	tbl, _ := table.WrapHomogen(data, rows, cols, nil, table.RowMajor)
//	blk, ev, err := tbl.PullRows(ctx, dtype.Float64, table.Rows(0, 128))
//	if err != nil { ... }
//	defer blk.Release()
//	_ = ev.Wait()
//
// The builders allocate storage and expose the same protocol so a table
// can be filled block by block before Build hands it over.
package table
