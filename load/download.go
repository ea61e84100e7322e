package load

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"geoapis/models"
	"geoapis/object"

	"github.com/minio/minio-go/v7"
)

// Result describes a completed transfer.
type Result struct {
	Object object.Object
	Size   int64
	ETag   string
}

// Size returns the size in bytes of key.
func (l *Loader) Size(ctx context.Context, key string) (int64, error) {
	info, err := l.store.StatObject(ctx, l.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s/%s: %w", l.bucket, key, err)
	}
	return info.Size, nil
}

// Fetch stores key at path in one call, creating parent directories.
func (l *Loader) Fetch(ctx context.Context, key, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := l.store.FGetObject(ctx, l.bucket, key, path, minio.GetObjectOptions{}); err != nil {
		slog.Error("failed to fetch object", "bucket", l.bucket, "key", key, "error", err)
		return fmt.Errorf("failed to fetch %s/%s: %w", l.bucket, key, err)
	}
	return nil
}

// Download streams obj into the cache through progress. The data is written
// next to the target and only renamed into place once complete.
func (l *Loader) Download(ctx context.Context, obj object.Object, progress *models.Progress) (Result, error) {
	reader, err := l.store.GetObject(ctx, l.bucket, obj.Key, minio.GetObjectOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("failed to get %s/%s: %w", l.bucket, obj.Key, err)
	}
	defer reader.Close()

	info, err := reader.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("failed to get %s/%s: %w", l.bucket, obj.Key, err)
	}

	if err := os.MkdirAll(filepath.Dir(obj.Path), 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create %s: %w", filepath.Dir(obj.Path), err)
	}
	// concurrent downloads of the same key each get their own part file
	out, err := os.CreateTemp(filepath.Dir(obj.Path), filepath.Base(obj.Path)+"-*.part")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create part file for %s: %w", obj.Path, err)
	}
	partPath := out.Name()

	written, err := io.Copy(models.NewProgressWriter(out, progress), reader)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil && info.Size >= 0 && written != info.Size {
		err = fmt.Errorf("short download: got %d of %d bytes", written, info.Size)
	}
	if err != nil {
		os.Remove(partPath)
		return Result{}, fmt.Errorf("failed to download %s/%s: %w", l.bucket, obj.Key, err)
	}
	if err := os.Rename(partPath, obj.Path); err != nil {
		os.Remove(partPath)
		return Result{}, fmt.Errorf("failed to move %s into place: %w", obj.Path, err)
	}

	return Result{Object: obj, Size: written, ETag: info.ETag}, nil
}
