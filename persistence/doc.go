// Package persistence stores tables in a compact binary file format.
//
// A file is a 32-byte header, the payload and a CRC32 trailer over the
// stored payload bytes:
//
//	magic "TBL1" | version | kind | compression | payload size | stored size
//	payload (optionally LZ4 or ZSTD compressed)
//	crc32
//
// The payload repeats the table kind tag first, then shape, feature types
// and the storage buffers in native little-endian order, each section
// 8-byte aligned. Uncompressed files can therefore be mapped with MapFile
// and used in place.
//
// Homogeneous, CSR and empty tables are supported. Heterogeneous tables
// return core.ErrUnsupported; tables in device-resident memory return
// core.ErrCapability.
package persistence
