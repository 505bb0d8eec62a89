// Package core holds the error taxonomy shared by all tabula packages.
//
// Errors fall into six classes, each with a sentinel usable with errors.Is:
//
//   - ErrDomain: invalid shapes, layouts or indexing modes
//   - ErrRange: ranges outside a table extent, mismatched push block sizes
//   - ErrInvalidArgument: unsupported conversions or reinterpretations
//   - ErrOverflow: count/size/stride arithmetic overflow, detected up front
//   - ErrUnsupported: operations a backend does not implement
//   - ErrCapability: access the underlying memory does not permit
//
// Errors are raised synchronously at the point of detection and are never
// retried internally. Accelerator-side failures surface when the caller
// waits on the returned event.
package core
