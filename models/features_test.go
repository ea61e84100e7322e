package models

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wfsResponse = `{
	"type": "FeatureCollection",
	"crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::2193"}},
	"features": [
		{
			"type": "Feature",
			"id": "layer-50767.1",
			"geometry": {"type": "MultiPolygon", "coordinates": [[[[0,0],[1,0],[1,1],[0,0]]]]},
			"properties": {"name": "Lake", "t50_fid": 1}
		}
	]
}`

func TestFeatureCollectionDecode(t *testing.T) {
	var fc FeatureCollection
	require.NoError(t, json.Unmarshal([]byte(wfsResponse), &fc))
	assert.Equal(t, "urn:ogc:def:crs:EPSG::2193", fc.CRS)
	require.Equal(t, 1, fc.Len())
	assert.Equal(t, []string{"name", "t50_fid"}, fc.Columns())
	_, isMulti := fc.Features[0].Geometry.(orb.MultiPolygon)
	assert.True(t, isMulti)
}

func TestFeatureCollectionDecodeWrongType(t *testing.T) {
	var fc FeatureCollection
	err := json.Unmarshal([]byte(`{"type": "Feature"}`), &fc)
	require.Error(t, err)
}

func TestFeatureCollectionAppendCollapsesSinglePolygon(t *testing.T) {
	fc := NewFeatureCollection("EPSG:2193")
	single := orb.MultiPolygon{orb.Bound{Max: orb.Point{1, 1}}.ToPolygon()}
	double := orb.MultiPolygon{
		orb.Bound{Max: orb.Point{1, 1}}.ToPolygon(),
		orb.Bound{Min: orb.Point{2, 2}, Max: orb.Point{3, 3}}.ToPolygon(),
	}
	fc.Append(geojson.NewFeature(single))
	fc.Append(geojson.NewFeature(double))

	_, isPolygon := fc.Features[0].Geometry.(orb.Polygon)
	assert.True(t, isPolygon)
	_, isMulti := fc.Features[1].Geometry.(orb.MultiPolygon)
	assert.True(t, isMulti)
}

func TestFeatureCollectionAppendAlignsColumns(t *testing.T) {
	fc := NewFeatureCollection("EPSG:2193")
	first := geojson.NewFeature(orb.Point{1, 1})
	first.Properties["a"] = 1
	first.Properties["b"] = "x"
	fc.Append(first)

	extra := geojson.NewFeature(orb.Point{2, 2})
	extra.Properties["a"] = 2
	extra.Properties["extra"] = "dropped"
	fc.Append(extra)

	bare := geojson.NewFeature(orb.Point{3, 3})
	bare.Properties = nil
	fc.Append(bare)

	assert.Equal(t, []string{"a", "b"}, fc.Columns())
	assert.Equal(t, geojson.Properties{"a": 2, "b": nil}, fc.Features[1].Properties)
	assert.Equal(t, geojson.Properties{"a": nil, "b": nil}, fc.Features[2].Properties)
	assert.Equal(t, geojson.Properties{"a": 1, "b": "x"}, fc.Features[0].Properties)
}

func TestFeatureCollectionEncode(t *testing.T) {
	fc := NewFeatureCollection("EPSG:2193")
	f := geojson.NewFeature(orb.Point{1570000, 5180000})
	f.Properties["name"] = "trig"
	fc.Append(f)

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Equal(t, "FeatureCollection", generic["type"])
	assert.Equal(t, "EPSG:2193", generic["crs"].(map[string]any)["properties"].(map[string]any)["name"])
	assert.Len(t, generic["features"], 1)

	empty, err := json.Marshal(&FeatureCollection{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(empty))
}
