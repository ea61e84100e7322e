// Package raster downloads GeoTIFF exports of raster layers from Koordinates
// based portals such as the LINZ Data Service.
package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"geoapis/client"
	"geoapis/geometry"

	"github.com/juju/clock"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	defaultPollInterval = 20 * time.Second
	// maxExtentCoords is the Koordinates limit on extent polygon vertices.
	maxExtentCoords = 1000
	geoTIFFFormat   = "image/tiff;subtype=geotiff"
)

var (
	ErrInvalidExport = errors.New("export request is invalid")
	ErrExportFailed  = errors.New("export did not complete")
	ErrTooManyCoords = errors.New("bounding polygon has too many coordinates")
	ErrNoCRS         = errors.New("a CRS or a bounding polygon is required")
)

type Options struct {
	// CRS of the exported rasters. Defaults to the bounding polygon's CRS;
	// one of the two is required.
	CRS             int
	BoundingPolygon *geometry.Polygon
	Verbose         bool
	PollInterval    time.Duration
	// Scheme defaults to https.
	Scheme     string
	HTTPClient *http.Client
	Clock      clock.Clock
}

// KoordinatesQuery runs exports through the Koordinates exports API.
type KoordinatesQuery struct {
	key       string
	netloc    string
	cachePath string
	opts      Options
	polygon   *geometry.Polygon
}

func New(key, netloc, cachePath string, opts Options) (*KoordinatesQuery, error) {
	if key == "" {
		return nil, fmt.Errorf("an API key is required for %s", netloc)
	}
	if netloc == "" {
		return nil, errors.New("netloc is required")
	}
	if opts.Scheme == "" {
		opts.Scheme = "https"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = client.New()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}

	q := &KoordinatesQuery{key: key, netloc: netloc, cachePath: cachePath, opts: opts}
	if opts.BoundingPolygon != nil {
		if q.opts.CRS == 0 {
			slog.Info("download CRS set from the bounding polygon", "epsg", opts.BoundingPolygon.EPSG)
			q.opts.CRS = opts.BoundingPolygon.EPSG
		}
		polygon := opts.BoundingPolygon
		if polygon.EPSG != q.opts.CRS {
			var err error
			if polygon, err = polygon.Transform(q.opts.CRS); err != nil {
				return nil, fmt.Errorf("failed to project bounding polygon: %w", err)
			}
		}
		if n := polygon.NumCoords(); n >= maxExtentCoords {
			return nil, fmt.Errorf("%w: %d, the limit is %d; use its bounding box instead",
				ErrTooManyCoords, n, maxExtentCoords)
		}
		q.polygon = polygon
	}
	if q.opts.CRS == 0 {
		return nil, ErrNoCRS
	}
	return q, nil
}

func (q *KoordinatesQuery) baseURL() string {
	return fmt.Sprintf("%s://%s/services/api/v1", q.opts.Scheme, q.netloc)
}

func (q *KoordinatesQuery) header() http.Header {
	return http.Header{"Authorization": []string{"key " + q.key}}
}

type exportItem struct {
	Item string `json:"item"`
}

type exportRequest struct {
	CRS     string            `json:"crs"`
	Formats map[string]string `json:"formats"`
	Items   []exportItem      `json:"items"`
	Extent  *geojson.Geometry `json:"extent,omitempty"`
}

// Export is the state of an export job.
type Export struct {
	ID             int      `json:"id"`
	State          string   `json:"state"`
	DownloadURL    string   `json:"download_url"`
	IsValid        bool     `json:"is_valid"`
	InvalidReasons []string `json:"invalid_reasons"`
	Items          []struct {
		InvalidReasons []string `json:"invalid_reasons"`
	} `json:"items"`
}

func (e Export) reasons() []string {
	reasons := append([]string{}, e.InvalidReasons...)
	for _, item := range e.Items {
		reasons = append(reasons, item.InvalidReasons...)
	}
	return reasons
}

// extent is the bounding polygon in EPSG:4326, as a Polygon when it has a
// single part.
func (q *KoordinatesQuery) extent() (*geojson.Geometry, error) {
	if q.polygon == nil {
		return nil, nil
	}
	lonLat, err := q.polygon.Transform(geometry.WGS84)
	if err != nil {
		return nil, fmt.Errorf("failed to project export extent: %w", err)
	}
	var mp orb.MultiPolygon
	for _, part := range lonLat.Parts() {
		mp = append(mp, orb.Polygon{part[0]})
	}
	if len(mp) == 1 {
		return geojson.NewGeometry(mp[0]), nil
	}
	return geojson.NewGeometry(mp), nil
}

// Run exports layer as GeoTIFF, waits for the export to complete and
// extracts it to <cache>/<layer>. It returns the paths of the .tif files.
func (q *KoordinatesQuery) Run(ctx context.Context, layer int) ([]string, error) {
	export, err := q.CreateExport(ctx, layer)
	if err != nil {
		return nil, err
	}
	export, err = q.WaitForExport(ctx, export.ID)
	if err != nil {
		return nil, err
	}
	return q.DownloadExport(ctx, layer, export)
}

// CreateExport submits the export request.
func (q *KoordinatesQuery) CreateExport(ctx context.Context, layer int) (Export, error) {
	extent, err := q.extent()
	if err != nil {
		return Export{}, err
	}
	request := exportRequest{
		CRS:     fmt.Sprintf("EPSG:%d", q.opts.CRS),
		Formats: map[string]string{"grid": geoTIFFFormat},
		Items:   []exportItem{{Item: fmt.Sprintf("%s/layers/%d/", q.baseURL(), layer)}},
		Extent:  extent,
	}

	slog.Info("requesting raster export", "netloc", q.netloc, "layer", layer, "crs", request.CRS)
	var export Export
	if err := client.PostJSON(ctx, q.opts.HTTPClient, q.baseURL()+"/exports/", q.header(), request, &export); err != nil {
		slog.Error("export request failed", "netloc", q.netloc, "layer", layer, "error", err)
		return Export{}, fmt.Errorf("failed to request export of layer %d: %w", layer, err)
	}
	if !export.IsValid {
		slog.Warn("invalid export request, check the layer exists and is within bounds",
			"layer", layer, "reasons", export.reasons())
		return export, fmt.Errorf("%w: layer %d: %v", ErrInvalidExport, layer, export.reasons())
	}
	return export, nil
}
