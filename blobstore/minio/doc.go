// Package minio provides a BlobStore on the MinIO client for MinIO and
// other S3-compatible object stores (Ceph, Garage, SeaweedFS).
//
// # Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "tables/")
//	cat := blobstore.NewCatalog(store, blobstore.WithNoOverwrite())
//	tbl, err := cat.Load(ctx, "iris")
//
// Store implements blobstore.ConditionalPutter through If-None-Match
// uploads, so a catalog created WithNoOverwrite creates tables atomically.
// No AWS SDK is involved, which suits air-gapped deployments.
package minio
