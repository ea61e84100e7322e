package load

import (
	"context"
	"errors"
	"net/http"

	"github.com/minio/minio-go/v7"
)

// ObjectStore is the part of *minio.Client the loader uses.
type ObjectStore interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
}

// Loader moves objects of one bucket into the local cache.
type Loader struct {
	store  ObjectStore
	bucket string
}

func Init(store ObjectStore, bucket string) *Loader {
	return &Loader{store: store, bucket: bucket}
}

// IsNotFound reports whether err means the key is absent from the bucket.
func IsNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
	}
	return false
}
