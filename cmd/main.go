package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("geoapis failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "geoapis",
		Usage: "download LiDAR from OpenTopography and vector or raster layers from LINZ and other Koordinates portals",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env",
				Usage: "dotenv files to read before the process environment",
				Value: cli.NewStringSlice(".env"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log each file and download progress",
			},
		},
		Commands: []*cli.Command{
			lidarCommand(),
			vectorCommand(),
			rasterCommand(),
			serveCommand(),
		},
	}
}
