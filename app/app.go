// Package app wires the configuration into the downloaders and serves them.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"geoapis/client"
	"geoapis/config"
	"geoapis/db"
	"geoapis/geometry"
	"geoapis/lidar"
	"geoapis/load"
	"geoapis/models"
	"geoapis/raster"
	"geoapis/server"
	"geoapis/vector"
)

type App struct {
	cfg      config.Config
	http     *http.Client
	loader   *load.Loader
	catalog  *lidar.Catalog
	manifest *db.DB
	verbose  bool
}

func New(cfg config.Config, verbose bool) (*App, error) {
	s3, err := client.NewS3(cfg.Lidar)
	if err != nil {
		return nil, err
	}
	hc := client.New()

	a := &App{
		cfg:     cfg,
		http:    hc,
		loader:  load.Init(s3, cfg.Lidar.Bucket),
		catalog: lidar.NewCatalog(cfg.Lidar.CatalogURL, hc),
		verbose: verbose,
	}
	if cfg.Cache.ManifestPath != "" {
		if a.manifest, err = db.NewDB(cfg.Cache.ManifestPath); err != nil {
			return nil, err
		}
		slog.Debug("download manifest opened", "path", cfg.Cache.ManifestPath)
	}
	return a, nil
}

func (a *App) Close() error {
	if a.manifest == nil {
		return nil
	}
	return a.manifest.Close()
}

// Lidar returns an OpenTopography client. Zero fields of opts are taken from
// the configuration.
func (a *App) Lidar(opts lidar.Options) *lidar.OpenTopography {
	if opts.CachePath == "" {
		opts.CachePath = a.cfg.Cache.Path
	}
	if opts.DownloadLimitGBytes == 0 {
		opts.DownloadLimitGBytes = a.cfg.Lidar.DownloadLimitGBytes
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = a.cfg.Lidar.Concurrency
	}
	if opts.Manifest == nil && a.manifest != nil {
		opts.Manifest = a.manifest
	}
	opts.Verbose = opts.Verbose || a.verbose
	return lidar.New(a.catalog, a.loader, opts)
}

// VectorQuery returns a WFS query against a named provider using its configured
// key.
func (a *App) VectorQuery(provider string, opts vector.Options) (*vector.WfsQuery, error) {
	p, err := vector.ProviderByName(provider)
	if err != nil {
		return nil, err
	}
	key, err := a.cfg.Keys.Key(p.Name)
	if err != nil {
		return nil, err
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = a.http
	}
	opts.Verbose = opts.Verbose || a.verbose
	return vector.New(key, p, opts)
}

// RasterQuery returns an exports query against a named provider using its
// configured key.
func (a *App) RasterQuery(provider string, opts raster.Options) (*raster.KoordinatesQuery, error) {
	p, err := vector.ProviderByName(provider)
	if err != nil {
		return nil, err
	}
	key, err := a.cfg.Keys.Key(p.Name)
	if err != nil {
		return nil, err
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = a.http
	}
	opts.Verbose = opts.Verbose || a.verbose
	return raster.New(key, p.Netloc, a.cfg.Cache.Path, opts)
}

func (a *App) Vector(ctx context.Context, req server.VectorRequest) (*models.FeatureCollection, error) {
	q, err := a.VectorQuery(req.Provider, vector.Options{CRS: req.CRS, BoundingPolygon: req.Area})
	if err != nil {
		return nil, err
	}
	return q.Run(ctx, req.Layer, req.GeometryName)
}

func (a *App) LidarDatasets(ctx context.Context, area *geometry.Polygon) ([]lidar.Dataset, error) {
	return a.catalog.Query(ctx, area)
}

func (a *App) LidarDownload(ctx context.Context, dataset string, area *geometry.Polygon) ([]lidar.DatasetResult, error) {
	return a.Lidar(lidar.Options{SearchPolygon: area}).Run(ctx, dataset)
}

func (a *App) Raster(ctx context.Context, req server.RasterRequest) ([]string, error) {
	q, err := a.RasterQuery(req.Provider, raster.Options{CRS: req.CRS, BoundingPolygon: req.Area})
	if err != nil {
		return nil, err
	}
	return q.Run(ctx, req.Layer)
}

// Serve runs the HTTP front end until ctx ends or a shutdown signal arrives.
func (a *App) Serve(ctx context.Context) error {
	s := server.NewServer(ctx, a)
	if err := s.Start(a.cfg.App); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
