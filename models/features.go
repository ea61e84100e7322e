package models

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection is a set of vector features in one CRS, as returned by a
// WFS GetFeature request with outputFormat=json.
type FeatureCollection struct {
	CRS      string
	Features []*geojson.Feature
}

type crsJSON struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

type featureCollectionJSON struct {
	Type     string             `json:"type"`
	CRS      *crsJSON           `json:"crs,omitempty"`
	Features []*geojson.Feature `json:"features"`
}

func NewFeatureCollection(crs string) *FeatureCollection {
	return &FeatureCollection{CRS: crs, Features: []*geojson.Feature{}}
}

func (fc *FeatureCollection) Len() int {
	if fc == nil {
		return 0
	}
	return len(fc.Features)
}

// Append adds a feature, collapsing a MultiPolygon of exactly one polygon
// into a Polygon. The first feature fixes the columns: later features lose
// extra properties and get nil for the missing ones.
func (fc *FeatureCollection) Append(f *geojson.Feature) {
	if mp, ok := f.Geometry.(orb.MultiPolygon); ok && len(mp) == 1 {
		f.Geometry = mp[0]
	}
	if fc.Len() > 0 {
		columns := fc.Columns()
		props := make(geojson.Properties, len(columns))
		for _, column := range columns {
			props[column] = f.Properties[column]
		}
		f.Properties = props
	}
	fc.Features = append(fc.Features, f)
}

// Columns lists the property names of the first feature, sorted.
func (fc *FeatureCollection) Columns() []string {
	if fc.Len() == 0 {
		return nil
	}
	columns := make([]string, 0, len(fc.Features[0].Properties))
	for k := range fc.Features[0].Properties {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

func (fc *FeatureCollection) MarshalJSON() ([]byte, error) {
	out := featureCollectionJSON{Type: "FeatureCollection", Features: fc.Features}
	if out.Features == nil {
		out.Features = []*geojson.Feature{}
	}
	if fc.CRS != "" {
		out.CRS = &crsJSON{Type: "name"}
		out.CRS.Properties.Name = fc.CRS
	}
	return json.Marshal(out)
}

func (fc *FeatureCollection) UnmarshalJSON(data []byte) error {
	var in featureCollectionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to decode feature collection: %w", err)
	}
	if in.Type != "FeatureCollection" {
		return fmt.Errorf("failed to decode feature collection: type is %q", in.Type)
	}
	fc.Features = in.Features
	if fc.Features == nil {
		fc.Features = []*geojson.Feature{}
	}
	fc.CRS = ""
	if in.CRS != nil {
		fc.CRS = in.CRS.Properties.Name
	}
	return nil
}
