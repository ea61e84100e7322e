package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"geoapis/app"
	"geoapis/config"
	"geoapis/geometry"
	"geoapis/lidar"
	"geoapis/raster"
	"geoapis/vector"

	"github.com/urfave/cli/v2"
)

var areaFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "bbox",
		Usage: "search area as minx,miny,maxx,maxy",
	},
	&cli.StringFlag{
		Name:  "polygon",
		Usage: "GeoJSON file holding the search area",
	},
	&cli.StringFlag{
		Name:  "area-crs",
		Usage: "EPSG code of --bbox or --polygon",
		Value: "4326",
	},
}

func withAreaFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags, areaFlags...)
}

// setup loads the configuration, installs the logger and builds the app.
func setup(c *cli.Context) (*app.App, error) {
	cfg, err := config.Get(c.StringSlice("env")...)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stderr))
	return app.New(cfg, c.Bool("verbose"))
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func areaFromFlags(c *cli.Context) (*geometry.Polygon, error) {
	epsg, err := geometry.ParseEPSG(c.String("area-crs"))
	if err != nil {
		return nil, err
	}
	switch {
	case c.IsSet("polygon") && c.IsSet("bbox"):
		return nil, errors.New("--polygon and --bbox are mutually exclusive")
	case c.IsSet("polygon"):
		return geometry.ReadPolygonFile(c.String("polygon"), epsg)
	case c.IsSet("bbox"):
		return geometry.ParseBBox(c.String("bbox"), epsg)
	}
	return nil, nil
}

func crsFromFlags(c *cli.Context) (int, error) {
	if !c.IsSet("crs") {
		return 0, nil
	}
	return geometry.ParseEPSG(c.String("crs"))
}

func lidarCommand() *cli.Command {
	return &cli.Command{
		Name:  "lidar",
		Usage: "download OpenTopography LiDAR tiles by dataset name, search area or both",
		Flags: withAreaFlags(
			&cli.StringFlag{Name: "dataset", Usage: "dataset short name, e.g. NZ20_Westport"},
			&cli.BoolFlag{Name: "redownload", Usage: "download files already in the cache again"},
			&cli.Float64Flag{Name: "limit-gb", Usage: "refuse datasets larger than this (default from DOWNLOAD_LIMIT_GBYTES)"},
			&cli.IntFlag{Name: "concurrency", Usage: "parallel tile downloads (default from CONCURRENCY)"},
		),
		Action: func(c *cli.Context) error {
			a, err := setup(c)
			if err != nil {
				return err
			}
			defer a.Close()

			area, err := areaFromFlags(c)
			if err != nil {
				return err
			}
			ot := a.Lidar(lidar.Options{
				SearchPolygon:       area,
				Redownload:          c.Bool("redownload"),
				DownloadLimitGBytes: c.Float64("limit-gb"),
				Concurrency:         c.Int("concurrency"),
			})
			results, err := ot.Run(c.Context, c.String("dataset"))
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, results)
		},
	}
}

func vectorCommand() *cli.Command {
	return &cli.Command{
		Name:  "vector",
		Usage: "download the features of a WFS layer as GeoJSON",
		Flags: withAreaFlags(
			&cli.StringFlag{Name: "provider", Usage: "linz, lris, statsnz or mfe", Value: "linz"},
			&cli.IntFlag{Name: "layer", Usage: "layer number", Required: true},
			&cli.StringFlag{Name: "crs", Usage: "EPSG code of the returned features"},
			&cli.StringFlag{Name: "geometry-name", Usage: "geometry column of the layer, tried from the provider's defaults when empty"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file, stdout when empty"},
		),
		Action: func(c *cli.Context) error {
			a, err := setup(c)
			if err != nil {
				return err
			}
			defer a.Close()

			area, err := areaFromFlags(c)
			if err != nil {
				return err
			}
			crs, err := crsFromFlags(c)
			if err != nil {
				return err
			}
			q, err := a.VectorQuery(c.String("provider"), vector.Options{CRS: crs, BoundingPolygon: area})
			if err != nil {
				return err
			}
			features, err := q.Run(c.Context, c.Int("layer"), c.String("geometry-name"))
			if err != nil {
				return err
			}
			if features == nil {
				slog.Info("no features within the search area", "layer", c.Int("layer"))
				return nil
			}

			w := c.App.Writer
			if path := c.String("out"); path != "" {
				out, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", path, err)
				}
				defer out.Close()
				w = out
			}
			return writeJSON(w, features)
		},
	}
}

func rasterCommand() *cli.Command {
	return &cli.Command{
		Name:  "raster",
		Usage: "export a raster layer as GeoTIFF into the cache",
		Flags: withAreaFlags(
			&cli.StringFlag{Name: "provider", Usage: "linz, lris, statsnz or mfe", Value: "linz"},
			&cli.IntFlag{Name: "layer", Usage: "layer number", Required: true},
			&cli.StringFlag{Name: "crs", Usage: "EPSG code of the exported rasters, defaults to the area's"},
		),
		Action: func(c *cli.Context) error {
			a, err := setup(c)
			if err != nil {
				return err
			}
			defer a.Close()

			area, err := areaFromFlags(c)
			if err != nil {
				return err
			}
			crs, err := crsFromFlags(c)
			if err != nil {
				return err
			}
			q, err := a.RasterQuery(c.String("provider"), raster.Options{CRS: crs, BoundingPolygon: area})
			if err != nil {
				return err
			}
			files, err := q.Run(c.Context, c.Int("layer"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, strings.Join(files, "\n"))
			return err
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the downloaders over HTTP on APP_HOST:APP_PORT",
		Action: func(c *cli.Context) error {
			a, err := setup(c)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(c.Context)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
