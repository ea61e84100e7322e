package lidar

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"geoapis/db"
	"geoapis/geometry"
	"geoapis/load"
	"geoapis/models"
	"geoapis/object"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

const gigabyte = 1 << 30

func tileIndexKey(dataset string) string {
	return dataset + "/" + dataset + "_TileIndex.zip"
}

func (ot *OpenTopography) downloadDataset(ctx context.Context, name string) (DatasetResult, error) {
	result := DatasetResult{Name: name}
	if ot.opts.Verbose {
		slog.Info("checking files in dataset", "dataset", name)
	}

	index, err := ot.tileIndex(ctx, name)
	if err != nil {
		return result, err
	}
	result.Tiles = len(index.Tiles)

	var pending []object.Object
	seen := make(map[string]bool, len(index.Tiles))
	for _, tile := range index.Tiles {
		obj, err := object.FromURL(ot.opts.CachePath, tile.URL)
		if err != nil {
			slog.Warn("skipping tile with invalid URL", "dataset", name, "file", tile.FileName, "error", err)
			result.Failed++
			continue
		}
		if seen[obj.Key] {
			slog.Debug("skipping duplicate tile", "dataset", name, "key", obj.Key)
			continue
		}
		seen[obj.Key] = true
		if !ot.opts.Redownload && obj.Exists() {
			result.Cached++
			continue
		}
		pending = append(pending, obj)
	}

	size, err := ot.downloadSize(ctx, name, pending)
	if err != nil {
		return result, err
	}
	if float64(size)/gigabyte >= ot.opts.DownloadLimitGBytes {
		slog.Error("download limit exceeded", "dataset", name, "size", humanize.IBytes(uint64(size)),
			"limit_gb", ot.opts.DownloadLimitGBytes)
		return result, fmt.Errorf("%w: dataset %s needs %s, limit is %g GB",
			ErrDownloadLimit, name, humanize.IBytes(uint64(size)), ot.opts.DownloadLimitGBytes)
	}

	progress := models.NewProgress(name, size, ot.opts.Verbose)
	var downloaded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ot.opts.Concurrency)
	for _, obj := range pending {
		g.Go(func() error {
			progress.Message("downloading file", "key", obj.Key)
			res, err := ot.loader.Download(gctx, obj, progress)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("tile download failed", "dataset", name, "key", obj.Key, "error", err)
				failed.Add(1)
				return nil
			}
			downloaded.Add(1)
			ot.record(gctx, name, res)
			return nil
		})
	}
	err = g.Wait()
	progress.Finish()

	result.Downloaded = int(downloaded.Load())
	result.Failed += int(failed.Load())
	result.Bytes = progress.Done()
	if err != nil {
		return result, fmt.Errorf("download of dataset %s interrupted: %w", name, err)
	}

	slog.Info("dataset downloaded", "dataset", name, "tiles", result.Tiles, "downloaded", result.Downloaded,
		"cached", result.Cached, "failed", result.Failed, "size", humanize.IBytes(uint64(result.Bytes)))
	return result, nil
}

// tileIndex fetches the dataset's tile index unless it is cached and loads
// the tiles inside the search polygon.
func (ot *OpenTopography) tileIndex(ctx context.Context, name string) (*geometry.TileIndex, error) {
	obj, err := object.FromKey(ot.opts.CachePath, tileIndexKey(name))
	if err != nil {
		return nil, err
	}
	if ot.opts.Redownload || !obj.Exists() {
		if err := ot.loader.Fetch(ctx, obj.Key, obj.Path); err != nil {
			return nil, fmt.Errorf("failed to fetch tile index of %s: %w", name, err)
		}
	}

	index, err := geometry.ReadTileIndex(obj.Path, ot.opts.SearchPolygon)
	if err != nil {
		return nil, fmt.Errorf("failed to load tile index of %s: %w", name, err)
	}
	return index, nil
}

// downloadSize sums the sizes of the objects still to download. Objects that
// cannot be stat'ed are left out of the sum; their download reports the error.
func (ot *OpenTopography) downloadSize(ctx context.Context, name string, objects []object.Object) (int64, error) {
	var total int64
	for _, obj := range objects {
		size, err := ot.loader.Size(ctx, obj.Key)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			slog.Warn("failed to check tile size", "dataset", name, "key", obj.Key, "error", err)
			continue
		}
		total += size
		if ot.opts.Verbose {
			slog.Info("checking size", "key", obj.Key, "size", humanize.IBytes(uint64(size)),
				"total", humanize.IBytes(uint64(total)))
		}
	}
	return total, nil
}

func (ot *OpenTopography) record(ctx context.Context, dataset string, res load.Result) {
	if ot.opts.Manifest == nil {
		return
	}
	err := ot.opts.Manifest.Record(ctx, db.Entry{
		Dataset: dataset,
		Key:     res.Object.Key,
		Path:    res.Object.Path,
		Size:    res.Size,
		ETag:    res.ETag,
	})
	if err != nil {
		slog.Warn("failed to record download", "key", res.Object.Key, "error", err)
	}
}
