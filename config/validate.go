package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

var bucketNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9.\-]*[a-z0-9]$`)

func isValidBucketName(bucketName string) bool {
	return bucketNameRegex.MatchString(bucketName)
}

func (ap *AppConfig) Validate() error {
	if ap.Port <= 0 || ap.Port > 65535 {
		return fmt.Errorf("APP_PORT must be in the range 1-65535, got: %d", ap.Port)
	}
	return nil
}

func (k *KeysConfig) Validate() error {
	return nil
}

func (lc *LidarConfig) Validate() error {
	var problems []string

	if u, err := url.Parse(lc.CatalogURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("OT_CATALOG_URL %q is not an absolute URL", lc.CatalogURL))
	}
	if strings.Contains(lc.Endpoint, "/") {
		problems = append(problems, fmt.Sprintf("OT_S3_ENDPOINT %q must be a host[:port] without scheme or path", lc.Endpoint))
	}
	if !isValidBucketName(lc.Bucket) {
		problems = append(problems, fmt.Sprintf("OT_BUCKET %q contains invalid characters", lc.Bucket))
	}
	if lc.DownloadLimitGBytes <= 0 {
		problems = append(problems, fmt.Sprintf("DOWNLOAD_LIMIT_GBYTES must be positive, got: %v", lc.DownloadLimitGBytes))
	}
	if lc.Concurrency <= 0 {
		problems = append(problems, fmt.Sprintf("CONCURRENCY must be positive, got: %d", lc.Concurrency))
	}

	if len(problems) > 0 {
		message := strings.Join(problems, "; ")
		slog.Warn("invalid lidar configuration", "problems", message)
		return fmt.Errorf("invalid lidar configuration: %s", message)
	}
	return nil
}

func (cc *CacheConfig) Validate() error {
	if cc.Path == "" {
		return fmt.Errorf("%w: CACHE_PATH", ErrMissingVariables)
	}
	return nil
}

func (lc *LogConfig) Validate() error {
	switch lc.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("GEOAPIS_LOG_FORMAT must be text or json, got: %q", lc.Format)
	}
}
