package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"geoapis/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	defaultTimeout = 5 * time.Minute
	// bodySnippetLimit bounds how much of an error response is kept in a StatusError.
	bodySnippetLimit = 512
)

// New returns the HTTP client shared by the catalog, WFS and exports queries.
func New() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// NewS3 connects anonymously to the OpenTopography bulk download endpoint.
func NewS3(cfg config.LidarConfig) (*minio.Client, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("", "", ""),
		Secure: cfg.UseSSL,
		Region: "us-east-1",
	})
	if err != nil {
		slog.Error("failed to create S3 client", "endpoint", cfg.Endpoint, "error", err)
		return nil, fmt.Errorf("failed to create S3 client for %s: %w", cfg.Endpoint, err)
	}

	slog.Debug("S3 client created", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return minioClient, nil
}

// StatusError is returned for responses with a 4xx or 5xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: unexpected status %d %s: %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// CheckResponse turns an error status into a *StatusError. The body is only
// read when the status is an error.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, bodySnippetLimit))
	return &StatusError{
		URL:        redact(resp.Request),
		StatusCode: resp.StatusCode,
		Body:       string(snippet),
	}
}

// GetJSON issues a GET request and decodes a JSON response into out.
func GetJSON(ctx context.Context, hc *http.Client, rawURL string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", redact(req), err)
	}
	defer resp.Body.Close()

	if err := CheckResponse(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", redact(req), err)
	}
	return nil
}

// PostJSON sends in as a JSON body and decodes the JSON response into out.
func PostJSON(ctx context.Context, hc *http.Client, rawURL string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", redact(req), err)
	}
	defer resp.Body.Close()

	if err := CheckResponse(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", redact(req), err)
	}
	return nil
}

// Download streams the body of a GET request to w. expected receives the
// response's Content-Length (-1 when unknown) before any data is copied.
func Download(ctx context.Context, hc *http.Client, rawURL string, header http.Header, w io.Writer, expected func(int64)) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request to %s failed: %w", redact(req), err)
	}
	defer resp.Body.Close()

	if err := CheckResponse(resp); err != nil {
		return 0, err
	}
	if expected != nil {
		expected(resp.ContentLength)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to download %s: %w", redact(req), err)
	}
	return n, nil
}

var pathKeyRegex = regexp.MustCompile(`;key=[^/]*`)

// redact drops the query string and any ";key=" path parameter from URLs that
// end up in logs and errors.
func redact(req *http.Request) string {
	if req == nil || req.URL == nil {
		return ""
	}
	u := *req.URL
	u.RawQuery = ""
	return pathKeyRegex.ReplaceAllString(u.String(), ";key=REDACTED")
}
