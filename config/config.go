package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

var ErrMissingVariables = errors.New("missing environment variables")

type BasicConfig interface {
	Load(map[string]string) error
	Validate() error
}

type AppConfig struct {
	Host string
	Port int
}

// KeysConfig holds the API keys of the Koordinates based portals. Each key is
// optional; a provider without a key is rejected when it is used.
type KeysConfig struct {
	Linz    string
	Lris    string
	StatsNz string
	Mfe     string
}

type LidarConfig struct {
	CatalogURL          string
	Endpoint            string
	Bucket              string
	UseSSL              bool
	DownloadLimitGBytes float64
	Concurrency         int
}

type CacheConfig struct {
	Path         string
	ManifestPath string
}

type LogConfig struct {
	Level  slog.Level
	Format string
}

type Config struct {
	App   AppConfig
	Keys  KeysConfig
	Lidar LidarConfig
	Cache CacheConfig
	Log   LogConfig
}

// readEnv merges the process environment with the given dotenv files. Values
// already present in the process environment win, as with godotenv.Load.
func readEnv(paths ...string) (map[string]string, error) {
	if len(paths) == 0 {
		paths = []string{defaultEnvFile}
	}

	env := make(map[string]string)
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			slog.Debug("env file not found, using process environment", "path", path)
			continue
		}
		fileEnv, err := godotenv.Read(path)
		if err != nil {
			slog.Error("failed to read env file", "path", path, "error", err)
			return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			env[k] = v
		}
	}
	return env, nil
}

// Get loads the configuration from the dotenv files at paths (".env" when
// none are given) and the process environment.
func Get(paths ...string) (Config, error) {
	envMap, err := readEnv(paths...)
	if err != nil {
		return Config{}, err
	}
	return FromMap(envMap)
}

// FromMap builds and validates a Config from already collected variables.
func FromMap(envMap map[string]string) (Config, error) {
	appCfg := &AppConfig{}
	keysCfg := &KeysConfig{}
	lidarCfg := &LidarConfig{}
	cacheCfg := &CacheConfig{}
	logCfg := &LogConfig{}

	configs := []BasicConfig{appCfg, keysCfg, lidarCfg, cacheCfg, logCfg}
	for _, cfg := range configs {
		if err := cfg.Load(envMap); err != nil {
			slog.Error("failed to load configuration", "error", err)
			return Config{}, err
		}
		if err := cfg.Validate(); err != nil {
			slog.Error("configuration validation failed", "error", err)
			return Config{}, err
		}
	}

	slog.Debug("configuration loaded")
	return Config{
		App:   *appCfg,
		Keys:  *keysCfg,
		Lidar: *lidarCfg,
		Cache: *cacheCfg,
		Log:   *logCfg,
	}, nil
}

// Key returns the API key configured for a named portal.
func (k KeysConfig) Key(provider string) (string, error) {
	var key string
	switch strings.ToLower(provider) {
	case "linz":
		key = k.Linz
	case "lris":
		key = k.Lris
	case "statsnz", "stats_nz":
		key = k.StatsNz
	case "mfe":
		key = k.Mfe
	default:
		return "", fmt.Errorf("unknown provider %q", provider)
	}
	if key == "" {
		return "", fmt.Errorf("%w: no API key for provider %q", ErrMissingVariables, provider)
	}
	return key, nil
}
