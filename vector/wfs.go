// Package vector queries WFS portals for the features of a vector layer,
// optionally limited to those passing through a bounding polygon.
package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"geoapis/client"
	"geoapis/geometry"
	"geoapis/models"

	"github.com/google/go-querystring/query"
)

var ErrNoGeometryName = errors.New("no geometry name matches the layer")

type Options struct {
	// CRS of the returned features. Defaults to the bounding polygon's CRS,
	// or the layer's own CRS when neither is set.
	CRS             int
	BoundingPolygon *geometry.Polygon
	Verbose         bool
	// Scheme defaults to https.
	Scheme     string
	HTTPClient *http.Client
}

type getFeatureQuery struct {
	Service      string `url:"service"`
	Version      string `url:"version"`
	Request      string `url:"request"`
	TypeNames    string `url:"typeNames"`
	OutputFormat string `url:"outputFormat"`
	SRSName      string `url:"SRSName,omitempty"`
	CQLFilter    string `url:"cql_filter,omitempty"`
}

type WfsQuery struct {
	key      string
	provider Provider
	opts     Options
	polygon  *geometry.Polygon
}

func New(key string, provider Provider, opts Options) (*WfsQuery, error) {
	if key == "" {
		return nil, fmt.Errorf("an API key is required for %s", provider.Netloc)
	}
	if len(provider.GeometryNames) == 0 {
		return nil, fmt.Errorf("%w: provider %s", ErrNoGeometryNames, provider.Netloc)
	}
	if opts.Scheme == "" {
		opts.Scheme = "https"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = client.New()
	}

	q := &WfsQuery{key: key, provider: provider, opts: opts, polygon: opts.BoundingPolygon}
	if q.polygon != nil {
		if q.opts.CRS == 0 {
			q.opts.CRS = q.polygon.EPSG
		}
		if q.polygon.EPSG != q.opts.CRS {
			polygon, err := q.polygon.Transform(q.opts.CRS)
			if err != nil {
				return nil, fmt.Errorf("failed to project bounding polygon: %w", err)
			}
			q.polygon = polygon
		}
	}
	return q, nil
}

func (q *WfsQuery) CRS() int {
	return q.opts.CRS
}

// Run returns the features of layer. With a bounding polygon only features
// intersecting it are kept, and nil is returned when there are none.
func (q *WfsQuery) Run(ctx context.Context, layer int, geometryName string) (*models.FeatureCollection, error) {
	if q.polygon == nil {
		return q.GetFeatures(ctx, layer)
	}
	return q.GetFeaturesInBounds(ctx, layer, geometryName)
}

// GetFeatures returns every feature of layer.
func (q *WfsQuery) GetFeatures(ctx context.Context, layer int) (*models.FeatureCollection, error) {
	response, err := q.getFeature(ctx, layer, "")
	if err != nil {
		slog.Error("WFS query failed", "provider", q.provider.Name, "layer", layer, "error", err)
		return nil, err
	}

	features := models.NewFeatureCollection(q.responseCRS(response))
	for _, f := range response.Features {
		features.Append(f)
	}
	if q.opts.Verbose {
		slog.Info("layer downloaded", "provider", q.provider.Name, "layer", layer, "features", features.Len())
	}
	return features, nil
}

// GetFeaturesInBounds queries the bounding box of the bounding polygon and
// keeps the features intersecting the polygon itself. An empty geometryName
// tries each of the provider's geometry names until one is accepted.
func (q *WfsQuery) GetFeaturesInBounds(ctx context.Context, layer int, geometryName string) (*models.FeatureCollection, error) {
	if q.polygon == nil {
		return nil, errors.New("no bounding polygon set")
	}

	response, err := q.getFeatureInBounds(ctx, layer, geometryName)
	if err != nil {
		return nil, err
	}

	features := models.NewFeatureCollection(q.responseCRS(response))
	for _, f := range response.Features {
		if !q.polygon.Intersects(f.Geometry) {
			continue
		}
		features.Append(f)
	}
	if q.opts.Verbose {
		slog.Info("layer downloaded", "provider", q.provider.Name, "layer", layer,
			"features", features.Len(), "returned", response.Len())
	}
	if features.Len() == 0 {
		return nil, nil
	}
	return features, nil
}

func (q *WfsQuery) getFeatureInBounds(ctx context.Context, layer int, geometryName string) (*models.FeatureCollection, error) {
	if geometryName != "" {
		response, err := q.getFeature(ctx, layer, q.bboxFilter(geometryName))
		if err != nil {
			slog.Error("WFS query failed", "provider", q.provider.Name, "layer", layer,
				"geometry_name", geometryName, "error", err)
			return nil, err
		}
		return response, nil
	}

	for _, name := range q.provider.GeometryNames {
		response, err := q.getFeature(ctx, layer, q.bboxFilter(name))
		if err == nil {
			return response, nil
		}
		var statusErr *client.StatusError
		if !errors.As(err, &statusErr) {
			return nil, err
		}
		if q.opts.Verbose {
			slog.Info("layer rejected geometry name", "layer", layer, "geometry_name", name, "status", statusErr.StatusCode)
		}
	}

	slog.Error("no geometry name matches the layer", "provider", q.provider.Name, "layer", layer,
		"geometry_names", q.provider.GeometryNames)
	return nil, fmt.Errorf("%w: layer %d, tried %v", ErrNoGeometryName, layer, q.provider.GeometryNames)
}

// bboxFilter builds the CQL bbox filter, whose axis order is maxy, maxx,
// miny, minx.
func (q *WfsQuery) bboxFilter(geometryName string) string {
	b := q.polygon.Bound()
	return fmt.Sprintf("bbox(%s, %s, %s, %s, %s, 'urn:ogc:def:crs:EPSG:%d')",
		geometryName, formatCoord(b.Max[1]), formatCoord(b.Max[0]),
		formatCoord(b.Min[1]), formatCoord(b.Min[0]), q.polygon.EPSG)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (q *WfsQuery) endpoint() string {
	return fmt.Sprintf("%s://%s/services;key=%s/wfs", q.opts.Scheme, q.provider.Netloc, url.PathEscape(q.key))
}

func (q *WfsQuery) getFeature(ctx context.Context, layer int, cqlFilter string) (*models.FeatureCollection, error) {
	params := getFeatureQuery{
		Service:      "WFS",
		Version:      "2.0",
		Request:      "GetFeature",
		TypeNames:    fmt.Sprintf("layer-%d", layer),
		OutputFormat: "json",
		CQLFilter:    cqlFilter,
	}
	if q.opts.CRS != 0 {
		params.SRSName = fmt.Sprintf("EPSG:%d", q.opts.CRS)
	}
	values, err := query.Values(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode WFS query: %w", err)
	}

	var response models.FeatureCollection
	if err := client.GetJSON(ctx, q.opts.HTTPClient, q.endpoint()+"?"+values.Encode(), nil, &response); err != nil {
		return nil, fmt.Errorf("failed to get layer %d from %s: %w", layer, q.provider.Netloc, err)
	}
	return &response, nil
}

func (q *WfsQuery) responseCRS(response *models.FeatureCollection) string {
	if response.CRS != "" || q.opts.CRS == 0 {
		return response.CRS
	}
	return fmt.Sprintf("EPSG:%d", q.opts.CRS)
}
