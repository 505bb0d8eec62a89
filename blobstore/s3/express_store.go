package s3

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/smithy-go"

	"github.com/hupe1980/tabula/blobstore"
)

// ExpressStore implements blobstore.BlobStore for S3 Express One Zone.
//
// S3 Express One Zone is a single-Availability Zone storage class with
// single-digit millisecond access. Its directory buckets (names ending with
// --azid--x-s3) support conditional writes, so ExpressStore also implements
// blobstore.ConditionalPutter and a Catalog created WithNoOverwrite uses
// them for atomic create.
type ExpressStore struct {
	client Client
	bucket string
	prefix string
	cfg    UploadConfig
}

var (
	_ blobstore.BlobStore         = (*ExpressStore)(nil)
	_ blobstore.ConditionalPutter = (*ExpressStore)(nil)
)

// ErrConflict is returned when a conditional write fails due to the object already existing.
var ErrConflict = blobstore.ErrConflict

// NewExpressStore creates a new S3 Express One Zone blob store.
// The bucket must be a directory bucket (ending with --azid--x-s3).
func NewExpressStore(client Client, bucket, rootPrefix string) *ExpressStore {
	return &ExpressStore{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
		cfg:    DefaultUploadConfig(),
	}
}

func (s *ExpressStore) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *ExpressStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return openBlob(ctx, s.client, s.bucket, s.key(name))
}

// Put writes a blob atomically.
func (s *ExpressStore) Put(ctx context.Context, name string, data []byte) error {
	return putObject(ctx, s.client, s.bucket, s.key(name), data, s.cfg.EnableChecksum, false)
}

// PutIfNotExists writes a blob only if it doesn't already exist.
// Returns ErrConflict if the key already exists.
func (s *ExpressStore) PutIfNotExists(ctx context.Context, name string, data []byte) error {
	err := putObject(ctx, s.client, s.bucket, s.key(name), data, s.cfg.EnableChecksum, true)
	if err != nil && isPreconditionFailed(err) {
		return fmt.Errorf("%w: %s", ErrConflict, name)
	}
	return err
}

// S3 Express returns PreconditionFailed or ConditionalRequestConflict.
func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return code == "PreconditionFailed" || code == "ConditionalRequestConflict"
}

func (s *ExpressStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return newStreamingWritableBlob(ctx, newUploader(s.client, s.cfg), s.bucket, s.key(name), s.cfg.EnableChecksum), nil
}

func (s *ExpressStore) Delete(ctx context.Context, name string) error {
	return deleteObject(ctx, s.client, s.bucket, s.key(name))
}

func (s *ExpressStore) List(ctx context.Context, prefix string) ([]string, error) {
	return listObjects(ctx, s.client, s.bucket, s.key(prefix), s.prefix)
}
