// Package shptest writes zipped tile index shapefiles for tests.
package shptest

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// NZTMProjection is the .prj content OpenTopography ships for NZ datasets.
const NZTMProjection = `PROJCS["NZGD2000_New_Zealand_Transverse_Mercator_2000",GEOGCS["GCS_NZGD_2000",DATUM["D_NZGD_2000",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",1600000.0],PARAMETER["False_Northing",10000000.0],PARAMETER["Central_Meridian",173.0],PARAMETER["Scale_Factor",0.9996],PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`

type Tile struct {
	FileName string
	URL      string
	Bound    orb.Bound
}

// WriteTileIndex writes a zipped shapefile with the given attribute columns
// (file name column first, URL column second) to zipPath. An empty prj leaves
// the projection file out.
func WriteTileIndex(t testing.TB, zipPath, fileNameColumn, urlColumn, prj string, tiles []Tile) {
	t.Helper()

	dir := t.TempDir()
	shpPath := filepath.Join(dir, "index.shp")
	w, err := shp.Create(shpPath, shp.POLYGON)
	if err != nil {
		t.Fatalf("create shapefile: %v", err)
	}
	if err := w.SetFields([]shp.Field{
		shp.StringField(fileNameColumn, 80),
		shp.StringField(urlColumn, 200),
	}); err != nil {
		t.Fatalf("set shapefile fields: %v", err)
	}
	for _, tile := range tiles {
		ring := tile.Bound.ToRing()
		points := make([]shp.Point, len(ring))
		for i, pt := range ring {
			points[i] = shp.Point{X: pt[0], Y: pt[1]}
		}
		row := w.Write(&shp.Polygon{
			Box:       shp.Box{MinX: tile.Bound.Min[0], MinY: tile.Bound.Min[1], MaxX: tile.Bound.Max[0], MaxY: tile.Bound.Max[1]},
			NumParts:  1,
			NumPoints: int32(len(points)),
			Parts:     []int32{0},
			Points:    points,
		})
		w.WriteAttribute(int(row), 0, tile.FileName)
		w.WriteAttribute(int(row), 1, tile.URL)
	}
	w.Close()
	// the writer names the attribute table "indexdbf"
	if err := os.Rename(filepath.Join(dir, "indexdbf"), filepath.Join(dir, "index.dbf")); err != nil {
		t.Fatalf("rename attribute table: %v", err)
	}

	if prj != "" {
		if err := os.WriteFile(filepath.Join(dir, "index.prj"), []byte(prj), 0o600); err != nil {
			t.Fatalf("write prj: %v", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(zipPath), 0o755); err != nil {
		t.Fatalf("create zip dir: %v", err)
	}
	out, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer out.Close()
	zw := zip.NewWriter(out)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read shapefile dir: %v", err)
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "index.") {
			continue
		}
		addFile(t, zw, filepath.Join(dir, entry.Name()))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func addFile(t testing.TB, zw *zip.Writer, path string) {
	t.Helper()
	in, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer in.Close()
	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		t.Fatalf("zip %s: %v", path, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		t.Fatalf("zip %s: %v", path, err)
	}
}
