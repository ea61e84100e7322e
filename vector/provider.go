package vector

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoGeometryNames = errors.New("at least one geometry name is required")
	ErrUnknownProvider = errors.New("unknown provider")
)

// Provider is a WFS portal. GeometryNames are tried in order when a layer's
// geometry column is not known.
type Provider struct {
	Name          string
	Netloc        string
	GeometryNames []string
}

// The LDS uses "shape" for property and title layers and "GEOMETRY" for most
// others. The other Koordinates portals follow it but spell it "Shape".
var (
	Linz = Provider{
		Name:          "linz",
		Netloc:        "data.linz.govt.nz",
		GeometryNames: []string{"GEOMETRY", "shape"},
	}
	Lris = Provider{
		Name:          "lris",
		Netloc:        "lris.scinfo.org.nz",
		GeometryNames: []string{"GEOMETRY", "Shape"},
	}
	StatsNz = Provider{
		Name:          "statsnz",
		Netloc:        "datafinder.stats.govt.nz",
		GeometryNames: []string{"GEOMETRY", "Shape"},
	}
	Mfe = Provider{
		Name:          "mfe",
		Netloc:        "data.mfe.govt.nz",
		GeometryNames: []string{"GEOMETRY", "Shape"},
	}
)

// NewProvider describes any other portal supporting WFS.
func NewProvider(netloc string, geometryNames ...string) (Provider, error) {
	if strings.TrimSpace(netloc) == "" {
		return Provider{}, errors.New("provider netloc is required")
	}
	names := make([]string, 0, len(geometryNames))
	for _, name := range geometryNames {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return Provider{}, fmt.Errorf("%w: provider %s", ErrNoGeometryNames, netloc)
	}
	return Provider{Name: netloc, Netloc: netloc, GeometryNames: names}, nil
}

// ProviderByName returns one of the known portals.
func ProviderByName(name string) (Provider, error) {
	switch strings.ToLower(name) {
	case "linz":
		return Linz, nil
	case "lris":
		return Lris, nil
	case "statsnz", "stats_nz":
		return StatsNz, nil
	case "mfe":
		return Mfe, nil
	}
	return Provider{}, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}
