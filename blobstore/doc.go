// Package blobstore archives tables in blob storage.
//
// BlobStore is the storage abstraction: named, immutable blobs with atomic
// Put, streaming Create, range reads and prefix listing. Implementations
// must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process, for tests
//   - LocalStore: local filesystem with mmap reads and atomic renames
//   - s3.Store, s3.ExpressStore: Amazon S3 and S3 Express One Zone
//   - minio.Store: MinIO and other S3-compatible storage
//
// # Catalog
//
// Catalog stores named tables on top of any BlobStore:
//
//	cat := blobstore.NewCatalog(store,
//	    blobstore.WithPersistenceOptions(persistence.WithCompression(persistence.CompressionZSTD)),
//	)
//	m, err := cat.Save(ctx, "iris", tbl)
//	tbl, err := cat.Load(ctx, "iris")
//
// Each table is a blob in the persistence file format plus a JSON manifest
// recording kind, shape, column types and the payload checksum.
package blobstore
