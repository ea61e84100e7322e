package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"geoapis/geometry"

	"github.com/go-chi/chi"
)

// parseArea reads the optional bbox and bbox_crs query parameters. The bbox
// CRS defaults to EPSG:4326.
func parseArea(r *http.Request) (*geometry.Polygon, error) {
	bbox := strings.TrimSpace(r.URL.Query().Get("bbox"))
	if bbox == "" {
		return nil, nil
	}
	epsg := geometry.WGS84
	if raw := r.URL.Query().Get("bbox_crs"); raw != "" {
		var err error
		if epsg, err = geometry.ParseEPSG(raw); err != nil {
			return nil, err
		}
	}
	return geometry.ParseBBox(bbox, epsg)
}

// parseCRS reads the optional crs query parameter; 0 means unset.
func parseCRS(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("crs")
	if raw == "" {
		return 0, nil
	}
	return geometry.ParseEPSG(raw)
}

func parseLayer(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "layer")
	layer, err := strconv.Atoi(strings.TrimPrefix(raw, "layer-"))
	if err != nil || layer <= 0 {
		return 0, fmt.Errorf("invalid layer %q", raw)
	}
	return layer, nil
}
