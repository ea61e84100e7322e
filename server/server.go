// Package server exposes the downloaders over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geoapis/config"
	"geoapis/geometry"
	"geoapis/lidar"
	"geoapis/models"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

const shutdownTimeout = 30 * time.Second

type VectorRequest struct {
	Provider     string
	Layer        int
	CRS          int
	Area         *geometry.Polygon
	GeometryName string
}

type RasterRequest struct {
	Provider string
	Layer    int
	CRS      int
	Area     *geometry.Polygon
}

// Services runs the downloads behind the routes.
type Services interface {
	Vector(ctx context.Context, req VectorRequest) (*models.FeatureCollection, error)
	LidarDatasets(ctx context.Context, area *geometry.Polygon) ([]lidar.Dataset, error)
	LidarDownload(ctx context.Context, dataset string, area *geometry.Polygon) ([]lidar.DatasetResult, error)
	Raster(ctx context.Context, req RasterRequest) ([]string, error)
}

type Server struct {
	ctx      context.Context
	services Services
}

func NewServer(ctx context.Context, services Services) *Server {
	return &Server{ctx: ctx, services: services}
}

func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.Health)
	router.Get("/vector/{provider}/{layer}", s.Vector)
	router.Get("/lidar/datasets", s.LidarDatasets)
	router.Post("/lidar/{dataset}", s.LidarDownload)
	router.Post("/raster/{provider}/{layer}", s.Raster)
	return router
}

// Start serves until a shutdown signal arrives or the server context ends.
func (s *Server) Start(cfg config.AppConfig) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("error starting HTTP server", "error", err)
			serveErr <- err
		}
		close(serveErr)
	}()

	return s.gracefulShutdown(httpServer, serveErr)
}

func (s *Server) gracefulShutdown(server *http.Server, serveErr <-chan error) error {
	shutdownSignals := make(chan os.Signal, 1)
	signal.Notify(shutdownSignals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer signal.Stop(shutdownSignals)

	select {
	case sig := <-shutdownSignals:
		slog.Info("received shutdown signal", "signal", sig.String())
	case <-s.ctx.Done():
		slog.Info("server context done")
	case err, ok := <-serveErr:
		if ok {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)

		if err := server.Close(); err != nil {
			slog.Error("forced shutdown failed", "error", err)
			return err
		}
	}

	slog.Info("server shutdown complete")
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
