package geometry

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"geoapis/geometry/shptest"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nztmTiles() []shptest.Tile {
	return []shptest.Tile{
		{
			FileName: "CL2_BQ31_2019_1000_4213.laz",
			URL:      "https://opentopography.s3.sdsc.edu/pc-bulk/NZ19_Wellington/CL2_BQ31_2019_1000_4213.laz",
			Bound:    orb.Bound{Min: orb.Point{1750000, 5420000}, Max: orb.Point{1751000, 5421000}},
		},
		{
			FileName: "CL2_BQ31_2019_1000_4214.laz",
			URL:      "https://opentopography.s3.sdsc.edu/pc-bulk/NZ19_Wellington/CL2_BQ31_2019_1000_4214.laz",
			Bound:    orb.Bound{Min: orb.Point{1751000, 5420000}, Max: orb.Point{1752000, 5421000}},
		},
		{
			FileName: "CL2_BQ32_2019_1000_0101.laz",
			URL:      "https://opentopography.s3.sdsc.edu/pc-bulk/NZ19_Wellington/CL2_BQ32_2019_1000_0101.laz",
			Bound:    orb.Bound{Min: orb.Point{1760000, 5430000}, Max: orb.Point{1761000, 5431000}},
		},
	}
}

func fileNames(index *TileIndex) []string {
	names := make([]string, len(index.Tiles))
	for i, tile := range index.Tiles {
		names[i] = tile.FileName
	}
	return names
}

func TestReadTileIndexAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "NZ19_Wellington_TileIndex.zip")
	shptest.WriteTileIndex(t, path, "Filename", "URL", shptest.NZTMProjection, nztmTiles())

	index, err := ReadTileIndex(path, nil)
	require.NoError(t, err)
	assert.Equal(t, NZTM, index.EPSG)
	assert.Equal(t, "Filename", index.FileNameColumn)
	assert.Equal(t, "URL", index.URLColumn)
	require.Len(t, index.Tiles, 3)
	assert.Equal(t, "CL2_BQ31_2019_1000_4213.laz", index.Tiles[0].FileName)
	assert.Equal(t, "https://opentopography.s3.sdsc.edu/pc-bulk/NZ19_Wellington/CL2_BQ32_2019_1000_0101.laz", index.Tiles[2].URL)
}

func TestReadTileIndexFiltersBySearchArea(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.zip")
	shptest.WriteTileIndex(t, path, "file_name", "url", shptest.NZTMProjection, nztmTiles())

	search := FromBound(orb.Bound{Min: orb.Point{1750500, 5420500}, Max: orb.Point{1751500, 5420800}}, NZTM)
	index, err := ReadTileIndex(path, search)
	require.NoError(t, err)
	assert.Equal(t, []string{"CL2_BQ31_2019_1000_4213.laz", "CL2_BQ31_2019_1000_4214.laz"}, fileNames(index))
}

func TestReadTileIndexReprojectsToSearchCRS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.zip")
	shptest.WriteTileIndex(t, path, "Filename", "URL", shptest.NZTMProjection, nztmTiles())

	// centre of the third tile, expressed in lon/lat
	centre, err := Transform(orb.Point{1760500, 5430500}, NZTM, WGS84)
	require.NoError(t, err)
	c := centre.(orb.Point)
	search := FromBound(orb.Bound{Min: orb.Point{c[0] - 0.001, c[1] - 0.001}, Max: orb.Point{c[0] + 0.001, c[1] + 0.001}}, WGS84)

	index, err := ReadTileIndex(path, search)
	require.NoError(t, err)
	assert.Equal(t, WGS84, index.EPSG)
	assert.Equal(t, []string{"CL2_BQ32_2019_1000_0101.laz"}, fileNames(index))
}

func TestReadTileIndexColumnDetection(t *testing.T) {
	tests := []struct {
		name    string
		fileCol string
		urlCol  string
		wantErr error
	}{
		{"no file name column", "name", "url", ErrNoFileNameColumn},
		{"no url column", "filename", "link", ErrNoURLColumn},
		{"ambiguous file name columns", "filename", "FILE_NAME", ErrNoFileNameColumn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "index.zip")
			shptest.WriteTileIndex(t, path, tt.fileCol, tt.urlCol, shptest.NZTMProjection, nztmTiles())
			_, err := ReadTileIndex(path, nil)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReadTileIndexWithoutProjection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.zip")
	tiles := []shptest.Tile{{
		FileName: "a.laz",
		URL:      "https://opentopography.s3.sdsc.edu/pc-bulk/DS/a.laz",
		Bound:    orb.Bound{Min: orb.Point{172.5, -43.6}, Max: orb.Point{172.6, -43.5}},
	}}
	shptest.WriteTileIndex(t, path, "FileName", "Url", "", tiles)

	index, err := ReadTileIndex(path, nil)
	require.NoError(t, err)
	assert.Equal(t, WGS84, index.EPSG)
	assert.Len(t, index.Tiles, 1)
}

func TestReadTileIndexWithoutAttributeTable(t *testing.T) {
	full := filepath.Join(t.TempDir(), "full.zip")
	shptest.WriteTileIndex(t, full, "Filename", "URL", shptest.NZTMProjection, nztmTiles())

	path := filepath.Join(t.TempDir(), "index.zip")
	copyZip(t, full, path, func(name string) bool { return !strings.HasSuffix(name, ".dbf") })

	index, err := ReadTileIndex(path, nil)
	require.ErrorIs(t, err, ErrNoFileNameColumn)
	assert.Nil(t, index)
	assert.Contains(t, err.Error(), "index.dbf")
}

func TestReadTileIndexWithoutShapefile(t *testing.T) {
	full := filepath.Join(t.TempDir(), "full.zip")
	shptest.WriteTileIndex(t, full, "Filename", "URL", shptest.NZTMProjection, nztmTiles())

	path := filepath.Join(t.TempDir(), "index.zip")
	copyZip(t, full, path, func(name string) bool { return !strings.HasSuffix(name, ".shp") })

	_, err := ReadTileIndex(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one shapefile")
}

// copyZip copies the entries of src accepted by keep into dst.
func copyZip(t *testing.T, src, dst string, keep func(name string) bool) {
	t.Helper()
	in, err := zip.OpenReader(src)
	require.NoError(t, err)
	defer in.Close()

	out, err := os.Create(dst)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for _, f := range in.File {
		if !keep(f.Name) {
			continue
		}
		require.NoError(t, zw.Copy(f))
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
}
