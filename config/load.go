package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

const (
	defaultCatalogURL    = "https://portal.opentopography.org/API/otCatalog"
	defaultEndpoint      = "opentopography.s3.sdsc.edu"
	defaultBucket        = "pc-bulk"
	defaultDownloadLimit = 100
	defaultConcurrency   = 4
	defaultCachePath     = "cache"
	defaultPort          = 8080
)

func lookup(envMap map[string]string, key string) (string, bool) {
	v, ok := envMap[key]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (c *AppConfig) Load(envMap map[string]string) error {
	c.Host, _ = lookup(envMap, "APP_HOST")

	portStr, ok := lookup(envMap, "APP_PORT")
	if !ok {
		c.Port = defaultPort
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("APP_PORT must be an integer, got %q: %w", portStr, err)
	}
	c.Port = port
	return nil
}

func (c *KeysConfig) Load(envMap map[string]string) error {
	c.Linz, _ = lookup(envMap, "LINZ_API_KEY")
	c.Lris, _ = lookup(envMap, "LRIS_API_KEY")
	c.StatsNz, _ = lookup(envMap, "STATSNZ_API_KEY")
	c.Mfe, _ = lookup(envMap, "MFE_API_KEY")
	return nil
}

func (c *LidarConfig) Load(envMap map[string]string) error {
	var ok bool

	if c.CatalogURL, ok = lookup(envMap, "OT_CATALOG_URL"); !ok {
		c.CatalogURL = defaultCatalogURL
	}
	if c.Endpoint, ok = lookup(envMap, "OT_S3_ENDPOINT"); !ok {
		c.Endpoint = defaultEndpoint
	}
	if c.Bucket, ok = lookup(envMap, "OT_BUCKET"); !ok {
		c.Bucket = defaultBucket
	}

	useSSLStr, ok := lookup(envMap, "OT_USE_SSL")
	if ok {
		c.UseSSL = strings.ToLower(useSSLStr) != "false"
	} else {
		c.UseSSL = true
	}

	c.DownloadLimitGBytes = defaultDownloadLimit
	if limitStr, ok := lookup(envMap, "DOWNLOAD_LIMIT_GBYTES"); ok {
		limit, err := strconv.ParseFloat(limitStr, 64)
		if err != nil {
			return fmt.Errorf("DOWNLOAD_LIMIT_GBYTES must be a number, got %q: %w", limitStr, err)
		}
		c.DownloadLimitGBytes = limit
	}

	c.Concurrency = defaultConcurrency
	if concurrencyStr, ok := lookup(envMap, "CONCURRENCY"); ok {
		concurrency, err := strconv.Atoi(concurrencyStr)
		if err != nil {
			return fmt.Errorf("CONCURRENCY must be an integer, got %q: %w", concurrencyStr, err)
		}
		c.Concurrency = concurrency
	}
	return nil
}

func (c *CacheConfig) Load(envMap map[string]string) error {
	var ok bool
	if c.Path, ok = lookup(envMap, "CACHE_PATH"); !ok {
		slog.Debug("CACHE_PATH not set, using default", "cache_path", defaultCachePath)
		c.Path = defaultCachePath
	}
	c.ManifestPath, _ = lookup(envMap, "MANIFEST_PATH")
	return nil
}

func (c *LogConfig) Load(envMap map[string]string) error {
	c.Level = slog.LevelInfo
	if levelStr, ok := lookup(envMap, "GEOAPIS_LOG_LEVEL"); ok {
		if err := c.Level.UnmarshalText([]byte(levelStr)); err != nil {
			return fmt.Errorf("GEOAPIS_LOG_LEVEL is invalid: %w", err)
		}
	}
	c.Format, _ = lookup(envMap, "GEOAPIS_LOG_FORMAT")
	c.Format = strings.ToLower(c.Format)
	if c.Format == "" {
		c.Format = "text"
	}
	return nil
}
