package geometry

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEPSG(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"EPSG:2193", 2193},
		{"epsg:4326", 4326},
		{"urn:ogc:def:crs:EPSG::2193", 2193},
		{"urn:ogc:def:crs:EPSG:4326", 4326},
		{"2193", 2193},
	}
	for _, tt := range tests {
		got, err := ParseEPSG(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseEPSG("WGS 84")
	require.ErrorIs(t, err, ErrUnsupportedCRS)
}

func TestTransformOrigin(t *testing.T) {
	g, err := Transform(orb.Point{173, 0}, WGS84, NZTM)
	require.NoError(t, err)
	got := g.(orb.Point)
	assert.InDelta(t, 1600000, got[0], 1e-6)
	assert.InDelta(t, 10000000, got[1], 1e-6)
}

func TestTransformCentralMeridianEasting(t *testing.T) {
	g, err := Transform(orb.Point{173, -41.5}, WGS84, NZTM)
	require.NoError(t, err)
	got := g.(orb.Point)
	assert.InDelta(t, 1600000, got[0], 1e-6)
	assert.Less(t, got[1], 10000000.0)
	assert.Greater(t, got[1], 5000000.0)
}

func TestTransformRoundTrip(t *testing.T) {
	ring := orb.Ring{{172.5, -43.6}, {172.7, -43.6}, {172.7, -43.4}, {172.5, -43.4}, {172.5, -43.6}}
	original := orb.Polygon{ring}

	projected, err := Transform(original, WGS84, NZTM)
	require.NoError(t, err)
	back, err := Transform(projected, NZTM, WGS84)
	require.NoError(t, err)

	// orb's Equal methods compare exactly, so plain coordinates are compared
	coords := cmp.Transformer("coords", func(p orb.Polygon) [][][2]float64 {
		rings := make([][][2]float64, len(p))
		for i, r := range p {
			rings[i] = make([][2]float64, len(r))
			for j, pt := range r {
				rings[i][j] = [2]float64(pt)
			}
		}
		return rings
	})
	if diff := cmp.Diff(original, back.(orb.Polygon), coords, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	// the input is left untouched
	assert.Equal(t, 172.5, ring[0][0])
}

func TestTransformUnsupported(t *testing.T) {
	_, err := Transform(orb.Point{0, 0}, 3857, WGS84)
	require.ErrorIs(t, err, ErrUnsupportedCRS)
}

func TestCRSFromWKT(t *testing.T) {
	epsg, err := crsFromWKT(`PROJCS["NZGD2000_New_Zealand_Transverse_Mercator_2000",GEOGCS["GCS_NZGD_2000"]]`)
	require.NoError(t, err)
	assert.Equal(t, NZTM, epsg)

	epsg, err = crsFromWKT(`PROJCS["NZGD2000 / New Zealand Transverse Mercator 2000",AUTHORITY["EPSG","2193"]]`)
	require.NoError(t, err)
	assert.Equal(t, NZTM, epsg)

	epsg, err = crsFromWKT(`GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984"]]`)
	require.NoError(t, err)
	assert.Equal(t, WGS84, epsg)

	_, err = crsFromWKT(`PROJCS["WGS_1984_UTM_Zone_11N"]`)
	require.ErrorIs(t, err, ErrUnsupportedCRS)
}
