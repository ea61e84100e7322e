package raster

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"geoapis/client"
	"geoapis/file"
	"geoapis/models"
)

// DownloadExport fetches a completed export and extracts it into
// <cache>/<layer>.
func (q *KoordinatesQuery) DownloadExport(ctx context.Context, layer int, export Export) ([]string, error) {
	if export.DownloadURL == "" {
		return nil, fmt.Errorf("%w: export %d has no download URL", ErrExportFailed, export.ID)
	}
	layerDir := filepath.Join(q.cachePath, strconv.Itoa(layer))
	if err := os.MkdirAll(layerDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", layerDir, err)
	}

	archive, err := os.CreateTemp(q.cachePath, fmt.Sprintf("export-%d-*.zip", export.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to create export archive: %w", err)
	}
	defer os.Remove(archive.Name())

	slog.Info("downloading export", "id", export.ID, "layer", layer, "path", layerDir)
	progress := models.NewProgress(fmt.Sprintf("layer-%d", layer), 0, q.opts.Verbose)
	_, err = client.Download(ctx, q.opts.HTTPClient, export.DownloadURL, q.header(),
		models.NewProgressWriter(archive, progress), progress.SetExpected)
	if closeErr := archive.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		slog.Error("export download failed", "id", export.ID, "error", err)
		return nil, fmt.Errorf("failed to download export %d: %w", export.ID, err)
	}
	progress.Finish()

	isZip, err := file.IsZip(archive.Name())
	if err != nil {
		return nil, err
	}
	if !isZip {
		return nil, fmt.Errorf("%w: export %d download is not a zip archive", ErrExportFailed, export.ID)
	}
	if _, err := file.ExtractZip(archive.Name(), layerDir); err != nil {
		return nil, fmt.Errorf("failed to extract export %d: %w", export.ID, err)
	}

	return listRasters(layerDir)
}

// listRasters returns the .tif files directly inside dir.
func listRasters(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var rasters []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".tif") {
			continue
		}
		rasters = append(rasters, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(rasters)
	if len(rasters) == 0 {
		slog.Warn("export contains no GeoTIFF files", "path", dir)
	}
	return rasters, nil
}
