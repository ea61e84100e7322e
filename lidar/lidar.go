// Package lidar downloads point cloud tiles from the OpenTopography bulk
// download bucket, either for every dataset within a search polygon or for a
// dataset chosen by name.
package lidar

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"geoapis/db"
	"geoapis/geometry"
	"geoapis/load"
)

const (
	defaultDownloadLimitGBytes = 100
	defaultConcurrency         = 4
)

var (
	ErrNoSearchTarget = errors.New("either a search polygon or a dataset name is required")
	ErrDownloadLimit  = errors.New("download size exceeds the limit")
	ErrNotRun         = errors.New("run must be called before dataset prefixes are available")
)

type Options struct {
	CachePath string
	// SearchPolygon limits the datasets and tiles downloaded. It may be nil
	// when datasets are requested by name.
	SearchPolygon       *geometry.Polygon
	Redownload          bool
	DownloadLimitGBytes float64
	Concurrency         int
	Verbose             bool
	Manifest            db.Recorder
}

// OpenTopography fetches LiDAR datasets into a local cache laid out like the
// bucket: <cache>/<dataset>/<tile>.
type OpenTopography struct {
	opts    Options
	catalog *Catalog
	loader  *load.Loader

	mu       sync.Mutex
	prefixes []string
	ran      bool
}

func New(catalog *Catalog, loader *load.Loader, opts Options) *OpenTopography {
	if opts.DownloadLimitGBytes <= 0 {
		opts.DownloadLimitGBytes = defaultDownloadLimitGBytes
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.CachePath == "" {
		opts.CachePath = "."
	}
	return &OpenTopography{opts: opts, catalog: catalog, loader: loader}
}

// DatasetResult summarises the tiles of one dataset.
type DatasetResult struct {
	Name       string `json:"name"`
	Tiles      int    `json:"tiles"`
	Downloaded int    `json:"downloaded"`
	Cached     int    `json:"cached"`
	Failed     int    `json:"failed"`
	Bytes      int64  `json:"bytes"`
}

// Run downloads datasetName when it is given, otherwise every dataset inside
// the search polygon.
func (ot *OpenTopography) Run(ctx context.Context, datasetName string) ([]DatasetResult, error) {
	switch {
	case datasetName != "":
		return ot.DownloadDatasetByName(ctx, datasetName)
	case ot.opts.SearchPolygon != nil:
		return ot.DownloadDatasetsInPolygon(ctx)
	default:
		slog.Info("nothing to download: set a search polygon or a dataset name")
		return nil, ErrNoSearchTarget
	}
}

// DownloadDatasetsInPolygon downloads the tiles of every catalog dataset
// overlapping the search polygon.
func (ot *OpenTopography) DownloadDatasetsInPolygon(ctx context.Context) ([]DatasetResult, error) {
	if ot.opts.SearchPolygon == nil {
		return nil, ErrNoSearchTarget
	}
	ot.resetPrefixes()

	datasets, err := ot.catalog.Query(ctx, ot.opts.SearchPolygon)
	if err != nil {
		return nil, err
	}

	var results []DatasetResult
	for _, dataset := range datasets {
		ot.addPrefix(dataset.Name)
		res, err := ot.downloadDataset(ctx, dataset.Name)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// DownloadDatasetByName downloads one dataset. With a search polygon the
// dataset is only downloaded if the catalog lists it within the polygon, and
// only the tiles inside the polygon are fetched.
func (ot *OpenTopography) DownloadDatasetByName(ctx context.Context, name string) ([]DatasetResult, error) {
	ot.resetPrefixes()

	if ot.opts.SearchPolygon != nil {
		datasets, err := ot.catalog.Query(ctx, ot.opts.SearchPolygon)
		if err != nil {
			return nil, err
		}
		if !slices.ContainsFunc(datasets, func(d Dataset) bool { return d.Name == name }) {
			slog.Info("dataset is not within the search polygon", "dataset", name)
			return nil, nil
		}
	}

	ot.addPrefix(name)
	res, err := ot.downloadDataset(ctx, name)
	if err != nil {
		return nil, err
	}
	return []DatasetResult{res}, nil
}

// DatasetPrefixes returns the names of the datasets handled by the last run.
func (ot *OpenTopography) DatasetPrefixes() ([]string, error) {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	if !ot.ran {
		return nil, ErrNotRun
	}
	return slices.Clone(ot.prefixes), nil
}

func (ot *OpenTopography) resetPrefixes() {
	ot.mu.Lock()
	ot.prefixes = []string{}
	ot.ran = true
	ot.mu.Unlock()
}

func (ot *OpenTopography) addPrefix(name string) {
	ot.mu.Lock()
	ot.prefixes = append(ot.prefixes, name)
	ot.mu.Unlock()
}
