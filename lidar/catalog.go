package lidar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"geoapis/client"
	"geoapis/geometry"

	"github.com/google/go-querystring/query"
)

// Dataset is one entry of the OpenTopography catalog. Name is the dataset's
// short name, used as its prefix in the bulk download bucket.
type Dataset struct {
	Name  string `json:"alternateName"`
	Title string `json:"name"`
}

type catalogResponse struct {
	Datasets []struct {
		Dataset Dataset `json:"Dataset"`
	} `json:"Datasets"`
}

type catalogQuery struct {
	ProductFormat    string  `url:"productFormat"`
	MinX             float64 `url:"minx"`
	MinY             float64 `url:"miny"`
	MaxX             float64 `url:"maxx"`
	MaxY             float64 `url:"maxy"`
	Detail           bool    `url:"detail"`
	OutputFormat     string  `url:"outputFormat"`
	IncludeFederated bool    `url:"include_federated"`
}

// Catalog queries the OpenTopography otCatalog API.
type Catalog struct {
	URL        string
	HTTPClient *http.Client
}

func NewCatalog(catalogURL string, hc *http.Client) *Catalog {
	if hc == nil {
		hc = client.New()
	}
	return &Catalog{URL: catalogURL, HTTPClient: hc}
}

// Query lists the point cloud datasets overlapping the bounds of area.
func (c *Catalog) Query(ctx context.Context, area *geometry.Polygon) ([]Dataset, error) {
	lonLat, err := area.Transform(geometry.WGS84)
	if err != nil {
		return nil, fmt.Errorf("failed to project search polygon for the catalog: %w", err)
	}
	bound := lonLat.Bound()

	values, err := query.Values(catalogQuery{
		ProductFormat:    "PointCloud",
		MinX:             bound.Min[0],
		MinY:             bound.Min[1],
		MaxX:             bound.Max[0],
		MaxY:             bound.Max[1],
		Detail:           false,
		OutputFormat:     "json",
		IncludeFederated: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog query: %w", err)
	}

	var resp catalogResponse
	if err := client.GetJSON(ctx, c.HTTPClient, c.URL+"?"+values.Encode(), nil, &resp); err != nil {
		slog.Error("catalog query failed", "url", c.URL, "error", err)
		return nil, fmt.Errorf("failed to query the OpenTopography catalog: %w", err)
	}

	datasets := make([]Dataset, 0, len(resp.Datasets))
	for _, entry := range resp.Datasets {
		if entry.Dataset.Name == "" {
			continue
		}
		datasets = append(datasets, entry.Dataset)
	}
	slog.Debug("catalog queried", "datasets", len(datasets), "bound", bound)
	return datasets, nil
}
