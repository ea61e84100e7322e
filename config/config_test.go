package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMapDefaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.App.Port)
	assert.Equal(t, defaultCatalogURL, cfg.Lidar.CatalogURL)
	assert.Equal(t, defaultEndpoint, cfg.Lidar.Endpoint)
	assert.Equal(t, "pc-bulk", cfg.Lidar.Bucket)
	assert.True(t, cfg.Lidar.UseSSL)
	assert.Equal(t, float64(100), cfg.Lidar.DownloadLimitGBytes)
	assert.Equal(t, 4, cfg.Lidar.Concurrency)
	assert.Equal(t, "cache", cfg.Cache.Path)
	assert.Empty(t, cfg.Cache.ManifestPath)
	assert.Equal(t, slog.LevelInfo, cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestFromMapOverrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"APP_PORT":              "9000",
		"LINZ_API_KEY":          "linz-key",
		"OT_USE_SSL":            "false",
		"OT_S3_ENDPOINT":        "127.0.0.1:9001",
		"DOWNLOAD_LIMIT_GBYTES": "0.5",
		"CONCURRENCY":           "8",
		"CACHE_PATH":            "/tmp/lidar",
		"MANIFEST_PATH":         "/tmp/manifest.db",
		"GEOAPIS_LOG_LEVEL":     "debug",
		"GEOAPIS_LOG_FORMAT":    "JSON",
	})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, "linz-key", cfg.Keys.Linz)
	assert.False(t, cfg.Lidar.UseSSL)
	assert.Equal(t, "127.0.0.1:9001", cfg.Lidar.Endpoint)
	assert.Equal(t, 0.5, cfg.Lidar.DownloadLimitGBytes)
	assert.Equal(t, 8, cfg.Lidar.Concurrency)
	assert.Equal(t, "/tmp/lidar", cfg.Cache.Path)
	assert.Equal(t, "/tmp/manifest.db", cfg.Cache.ManifestPath)
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestFromMapInvalid(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		errContains string
	}{
		{
			name:        "port out of range",
			env:         map[string]string{"APP_PORT": "70000"},
			errContains: "APP_PORT",
		},
		{
			name:        "port not a number",
			env:         map[string]string{"APP_PORT": "http"},
			errContains: "APP_PORT must be an integer",
		},
		{
			name:        "bad bucket and limit reported together",
			env:         map[string]string{"OT_BUCKET": "Bad_Bucket", "DOWNLOAD_LIMIT_GBYTES": "-1"},
			errContains: "OT_BUCKET \"Bad_Bucket\" contains invalid characters; DOWNLOAD_LIMIT_GBYTES",
		},
		{
			name:        "endpoint with scheme",
			env:         map[string]string{"OT_S3_ENDPOINT": "https://example.com"},
			errContains: "OT_S3_ENDPOINT",
		},
		{
			name:        "log format",
			env:         map[string]string{"GEOAPIS_LOG_FORMAT": "xml"},
			errContains: "GEOAPIS_LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.env)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestGetReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LRIS_API_KEY=from-file\nSTATSNZ_API_KEY=from-file\n"), 0o600))

	t.Setenv("LRIS_API_KEY", "from-process")
	t.Setenv("STATSNZ_API_KEY", "")
	t.Setenv("APP_PORT", "")

	cfg, err := Get(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-process", cfg.Keys.Lris)
	// an empty process variable counts as unset
	assert.Empty(t, cfg.Keys.StatsNz)
}

func TestGetMissingEnvFile(t *testing.T) {
	t.Setenv("APP_PORT", "")
	_, err := Get(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

func TestKeysConfigKey(t *testing.T) {
	keys := KeysConfig{Linz: "a", StatsNz: "b"}

	key, err := keys.Key("LINZ")
	require.NoError(t, err)
	assert.Equal(t, "a", key)

	key, err = keys.Key("statsnz")
	require.NoError(t, err)
	assert.Equal(t, "b", key)

	_, err = keys.Key("lris")
	require.ErrorIs(t, err, ErrMissingVariables)

	_, err = keys.Key("nasa")
	require.Error(t, err)
}
