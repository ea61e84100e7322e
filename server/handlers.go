package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"geoapis/client"
	"geoapis/config"
	"geoapis/geometry"
	"geoapis/lidar"
	"geoapis/load"
	"geoapis/raster"
	"geoapis/vector"

	"github.com/go-chi/chi"
)

type errorResponse struct {
	Error string `json:"error"`
}

type lidarResponse struct {
	Datasets []lidar.DatasetResult `json:"datasets"`
}

type datasetsResponse struct {
	Datasets []lidar.Dataset `json:"datasets"`
}

type rasterResponse struct {
	Files []string `json:"files"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) Vector(w http.ResponseWriter, r *http.Request) {
	layer, err := parseLayer(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	area, err := parseArea(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	crs, err := parseCRS(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	features, err := s.services.Vector(r.Context(), VectorRequest{
		Provider:     chi.URLParam(r, "provider"),
		Layer:        layer,
		CRS:          crs,
		Area:         area,
		GeometryName: r.URL.Query().Get("geometry_name"),
	})
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	if features == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(features); err != nil {
		slog.Error("failed to write features", "error", err)
	}
}

func (s *Server) LidarDatasets(w http.ResponseWriter, r *http.Request) {
	area, err := parseArea(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if area == nil {
		writeError(w, http.StatusBadRequest, errors.New("bbox is required"))
		return
	}

	datasets, err := s.services.LidarDatasets(r.Context(), area)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	if datasets == nil {
		datasets = []lidar.Dataset{}
	}
	writeJSON(w, http.StatusOK, datasetsResponse{Datasets: datasets})
}

func (s *Server) LidarDownload(w http.ResponseWriter, r *http.Request) {
	area, err := parseArea(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	results, err := s.services.LidarDownload(r.Context(), chi.URLParam(r, "dataset"), area)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	if results == nil {
		results = []lidar.DatasetResult{}
	}
	writeJSON(w, http.StatusOK, lidarResponse{Datasets: results})
}

func (s *Server) Raster(w http.ResponseWriter, r *http.Request) {
	layer, err := parseLayer(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	area, err := parseArea(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	crs, err := parseCRS(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	files, err := s.services.Raster(r.Context(), RasterRequest{
		Provider: chi.URLParam(r, "provider"),
		Layer:    layer,
		CRS:      crs,
		Area:     area,
	})
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, rasterResponse{Files: files})
}

func errorStatus(err error) int {
	var statusErr *client.StatusError
	switch {
	case errors.Is(err, vector.ErrUnknownProvider), load.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, geometry.ErrUnsupportedCRS),
		errors.Is(err, geometry.ErrNotPolygonal),
		errors.Is(err, lidar.ErrNoSearchTarget),
		errors.Is(err, raster.ErrTooManyCoords),
		errors.Is(err, raster.ErrNoCRS),
		errors.Is(err, vector.ErrNoGeometryName):
		return http.StatusBadRequest
	case errors.Is(err, lidar.ErrDownloadLimit),
		errors.Is(err, raster.ErrInvalidExport):
		return http.StatusUnprocessableEntity
	case errors.Is(err, config.ErrMissingVariables):
		return http.StatusServiceUnavailable
	case errors.As(err, &statusErr), errors.Is(err, raster.ErrExportFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	} else {
		slog.Warn("request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
