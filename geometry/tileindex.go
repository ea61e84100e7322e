package geometry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"geoapis/file"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

var (
	ErrNoFileNameColumn = errors.New("no single file name column in tile index")
	ErrNoURLColumn      = errors.New("no single URL column in tile index")
)

type Tile struct {
	FileName string
	URL      string
	Geometry orb.Geometry
}

// TileIndex lists the data tiles of one LiDAR dataset.
type TileIndex struct {
	Tiles          []Tile
	EPSG           int
	FileNameColumn string
	URLColumn      string
}

// ReadTileIndex loads a zipped tile index shapefile. When search is not nil
// only the tiles intersecting it are kept and their geometry is returned in
// the search area's CRS.
func ReadTileIndex(zipPath string, search *Polygon) (*TileIndex, error) {
	epsg, err := tileIndexCRS(zipPath)
	if err != nil {
		// the projection only matters when tiles are filtered
		if search != nil || !errors.Is(err, ErrUnsupportedCRS) {
			return nil, err
		}
		slog.Warn("ignoring unsupported tile index projection", "path", zipPath, "error", err)
	}

	if err := checkTileIndexArchive(zipPath); err != nil {
		return nil, err
	}
	reader, err := shp.OpenZip(zipPath)
	if err != nil {
		slog.Error("failed to open tile index", "path", zipPath, "error", err)
		return nil, fmt.Errorf("failed to open tile index %s: %w", zipPath, err)
	}
	defer reader.Close()

	columns := make([]string, 0, len(reader.Fields()))
	for _, field := range reader.Fields() {
		columns = append(columns, field.String())
	}
	fileNameIdx, err := detectColumn(columns, ErrNoFileNameColumn, "filename", "file_name")
	if err != nil {
		return nil, err
	}
	urlIdx, err := detectColumn(columns, ErrNoURLColumn, "url")
	if err != nil {
		return nil, err
	}

	index := &TileIndex{
		EPSG:           epsg,
		FileNameColumn: columns[fileNameIdx],
		URLColumn:      columns[urlIdx],
	}
	if search != nil {
		index.EPSG = search.EPSG
	}

	for reader.Next() {
		_, shape := reader.Shape()
		g := shapeGeometry(shape)
		if search != nil {
			if g, err = Transform(g, epsg, search.EPSG); err != nil {
				return nil, fmt.Errorf("failed to reproject tile index %s: %w", zipPath, err)
			}
			if !search.Intersects(g) {
				continue
			}
		}
		index.Tiles = append(index.Tiles, Tile{
			FileName: attribute(reader, fileNameIdx),
			URL:      attribute(reader, urlIdx),
			Geometry: g,
		})
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tile index %s: %w", zipPath, err)
	}

	slog.Debug("tile index loaded", "path", zipPath, "tiles", len(index.Tiles), "epsg", epsg)
	return index, nil
}

// checkTileIndexArchive makes sure the archive holds one shapefile with its
// attribute table, which shp.OpenZip treats as optional.
func checkTileIndexArchive(zipPath string) error {
	names, err := file.ZipEntries(zipPath)
	if err != nil {
		return err
	}
	var shapes []string
	for _, name := range names {
		if strings.HasSuffix(name, ".shp") {
			shapes = append(shapes, name)
		}
	}
	if len(shapes) != 1 {
		return fmt.Errorf("tile index %s must hold exactly one shapefile, found %d", zipPath, len(shapes))
	}
	dbf := strings.TrimSuffix(shapes[0], ".shp") + ".dbf"
	if !slices.Contains(names, dbf) {
		slog.Error("tile index has no attribute table", "path", zipPath, "shapefile", shapes[0])
		return fmt.Errorf("%w: %s has no attribute table %s", ErrNoFileNameColumn, zipPath, dbf)
	}
	return nil
}

// attribute strips the space or NUL padding of a DBF cell.
func attribute(reader *shp.ZipReader, idx int) string {
	return strings.TrimSpace(strings.Trim(reader.Attribute(idx), "\x00"))
}

// detectColumn finds the one column whose lower-cased name is in names.
func detectColumn(columns []string, notFound error, names ...string) (int, error) {
	match := -1
	for i, column := range columns {
		for _, name := range names {
			if strings.ToLower(column) != name {
				continue
			}
			if match >= 0 {
				return -1, fmt.Errorf("%w: columns %v", notFound, columns)
			}
			match = i
		}
	}
	if match < 0 {
		return -1, fmt.Errorf("%w: columns %v", notFound, columns)
	}
	return match, nil
}

func tileIndexCRS(zipPath string) (int, error) {
	prj, name, found, err := file.ReadZipEntry(zipPath, func(name string) bool {
		return strings.HasSuffix(strings.ToLower(name), ".prj")
	})
	if err != nil {
		return 0, err
	}
	if !found {
		slog.Warn("tile index has no projection file, assuming WGS84", "path", zipPath)
		return WGS84, nil
	}
	epsg, err := crsFromWKT(string(prj))
	if err != nil {
		return 0, fmt.Errorf("tile index %s (%s): %w", zipPath, name, err)
	}
	return epsg, nil
}

func shapeGeometry(shape shp.Shape) orb.Geometry {
	switch s := shape.(type) {
	case *shp.Polygon:
		return ringsGeometry(s.Parts, s.Points)
	case *shp.PolygonZ:
		return ringsGeometry(s.Parts, s.Points)
	case *shp.PolygonM:
		return ringsGeometry(s.Parts, s.Points)
	}
	box := shape.BBox()
	return orb.Bound{Min: orb.Point{box.MinX, box.MinY}, Max: orb.Point{box.MaxX, box.MaxY}}.ToPolygon()
}

// ringsGeometry treats every shapefile ring as its own polygon. Tile outlines
// have no holes, so the ring winding is not inspected.
func ringsGeometry(partStarts []int32, points []shp.Point) orb.Geometry {
	var mp orb.MultiPolygon
	for i, start := range partStarts {
		end := int32(len(points))
		if i+1 < len(partStarts) {
			end = partStarts[i+1]
		}
		ring := make(orb.Ring, 0, end-start)
		for _, pt := range points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		mp = append(mp, orb.Polygon{ring})
	}
	if len(mp) == 1 {
		return mp[0]
	}
	return mp
}
