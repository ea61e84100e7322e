// Package geometry holds the search areas, reprojection and tile index
// handling shared by the lidar, vector and raster clients.
package geometry

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrNotPolygonal = errors.New("geometry is not polygonal")

// Polygon is an area of interest in a known CRS.
type Polygon struct {
	Geometry orb.MultiPolygon
	EPSG     int
}

// NewPolygon accepts a Polygon, MultiPolygon, Bound or a Collection of those.
func NewPolygon(g orb.Geometry, epsg int) (*Polygon, error) {
	if epsg <= 0 {
		return nil, fmt.Errorf("%w: EPSG code must be positive, got %d", ErrUnsupportedCRS, epsg)
	}
	mp, err := toMultiPolygon(g)
	if err != nil {
		return nil, err
	}
	if len(mp) == 0 {
		return nil, fmt.Errorf("%w: empty geometry", ErrNotPolygonal)
	}
	return &Polygon{Geometry: mp, EPSG: epsg}, nil
}

func FromBound(b orb.Bound, epsg int) *Polygon {
	return &Polygon{Geometry: orb.MultiPolygon{b.ToPolygon()}, EPSG: epsg}
}

// ParseBBox parses "minx,miny,maxx,maxy".
func ParseBBox(s string, epsg int) (*Polygon, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid bbox %q: expected minx,miny,maxx,maxy", s)
	}
	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return nil, fmt.Errorf("invalid bbox %q: min must be less than max", s)
	}
	if epsg <= 0 {
		return nil, fmt.Errorf("%w: EPSG code must be positive, got %d", ErrUnsupportedCRS, epsg)
	}
	return FromBound(orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, epsg), nil
}

// ReadPolygonFile loads a GeoJSON geometry, feature or feature collection.
// All polygonal parts are merged into one search area.
func ReadPolygonFile(path string, epsg int) (*Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && len(fc.Features) > 0 {
		var collection orb.Collection
		for _, f := range fc.Features {
			collection = append(collection, f.Geometry)
		}
		return NewPolygon(collection, epsg)
	}
	if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		return NewPolygon(f.Geometry, epsg)
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON in %s: %w", path, err)
	}
	return NewPolygon(g.Geometry(), epsg)
}

func toMultiPolygon(g orb.Geometry) (orb.MultiPolygon, error) {
	switch g := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{g}, nil
	case orb.MultiPolygon:
		return g, nil
	case orb.Bound:
		return orb.MultiPolygon{g.ToPolygon()}, nil
	case orb.Ring:
		return orb.MultiPolygon{orb.Polygon{g}}, nil
	case orb.Collection:
		var mp orb.MultiPolygon
		for _, part := range g {
			sub, err := toMultiPolygon(part)
			if err != nil {
				return nil, err
			}
			mp = append(mp, sub...)
		}
		return mp, nil
	default:
		if g == nil {
			return nil, fmt.Errorf("%w: nil geometry", ErrNotPolygonal)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotPolygonal, g.GeoJSONType())
	}
}

func (p *Polygon) Bound() orb.Bound {
	return p.Geometry.Bound()
}

// Transform returns the area reprojected to epsg.
func (p *Polygon) Transform(epsg int) (*Polygon, error) {
	g, err := Transform(p.Geometry, p.EPSG, epsg)
	if err != nil {
		return nil, err
	}
	return &Polygon{Geometry: g.(orb.MultiPolygon), EPSG: epsg}, nil
}

// Intersects reports whether g, given in the polygon's CRS, touches the area.
func (p *Polygon) Intersects(g orb.Geometry) bool {
	return Intersects(p.Geometry, g)
}

// Parts returns each polygon of the area separately.
func (p *Polygon) Parts() []orb.Polygon {
	parts := make([]orb.Polygon, 0, len(p.Geometry))
	for _, poly := range p.Geometry {
		if len(poly) > 0 {
			parts = append(parts, poly)
		}
	}
	return parts
}

// NumCoords counts the exterior ring coordinates of all parts.
func (p *Polygon) NumCoords() int {
	n := 0
	for _, poly := range p.Parts() {
		n += len(poly[0])
	}
	return n
}

func (p *Polygon) String() string {
	b := p.Bound()
	return fmt.Sprintf("EPSG:%d [%g %g, %g %g] (%d parts)", p.EPSG, b.Min[0], b.Min[1], b.Max[0], b.Max[1], len(p.Geometry))
}
