// Package memory provides Buffer, the reference-counted typed view that every
// table and chunked array stores its elements in.
//
// A Buffer is type-erased: it carries a dtype.DataType tag, and the generic
// functions Data, MutableData and Wrap move between the tag and a Go slice.
// Views of one allocation may differ in element type (see Reinterpret), in
// range (see Buffer.Slice) and in mutability (see Buffer.ReadOnly); they all
// keep the allocation alive until the last one is released.
//
// Memory on the accelerator (policy.Device) is never exposed to host code
// through Data or Bytes. Kernels submitted to the owning queue reach it with
// RawBytes and RawData.
package memory
