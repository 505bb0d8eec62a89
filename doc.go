// Package tabula provides typed, zero-copy access to tabular data for
// numeric workloads on the host and on accelerators.
//
// A table exposes its rows and columns as blocks of any element type. A
// block is a view of table storage when the layout and type already match
// and a converted copy otherwise; the caller never needs to know which.
//
// # Quick Start
//
//	tbl, _ := table.WrapHomogen(data, rows, cols, nil, table.RowMajor)
//	defer tbl.Release()
//
//	block, ev, _ := tbl.PullRows(ctx, dtype.Float64, table.Rows(0, 128))
//	defer block.Release()
//	_ = ev.Wait()
//	values, _ := memory.Data[float64](block)
//
// # Packages
//
//   - dtype: element types and their runtime tags
//   - memory: reference-counted buffers with an allocation kind
//   - policy: where work runs (host, worker pool, in-order device queues)
//   - convert: the element type conversion engine
//   - chunked: chunked typed columns
//   - table: homogeneous, heterogeneous, CSR and empty tables with builders
//   - persistence: the binary table file format, including mapped files
//   - blobstore: table archives on local disk, S3 and MinIO
//   - interop: gonum and sparse matrix conversions
//   - logging, metrics, resource: ambient observability and budgets
//
// # Accelerators
//
// Accelerators are reached through policy.Accelerator and policy.Queue. Blocks
// pulled under a queue policy land in device memory and are ready once the
// returned event completes. The in-process policy.SimulatedDevice executes
// queue work on the host.
package tabula
