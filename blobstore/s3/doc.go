// Package s3 provides S3 implementations of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("tables/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	cat := blobstore.NewCatalog(store)
//	_, err = cat.Save(ctx, "iris", tbl)
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads for streaming writes
//   - CRC32C integrity validation on upload
//   - Automatic pagination for listing
//   - Conditional writes on S3 Express One Zone (ExpressStore)
package s3
