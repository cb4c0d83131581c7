// Package config loads runtime settings from the environment and deployment
// profiles from YAML.
package config

import "os"

// Config holds process-level settings.
type Config struct {
	CacheDir     string
	IndexDBPath  string
	LogLevel     string
	OTLPEndpoint string
	ProfilePath  string
}

// Load reads configuration from environment variables, applying defaults.
func Load() *Config {
	cacheDir := os.Getenv("GANTRY_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = "data/cache"
	}

	indexDB := os.Getenv("GANTRY_INDEX_DB")
	if indexDB == "" {
		indexDB = "data/index.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	return &Config{
		CacheDir:     cacheDir,
		IndexDBPath:  indexDB,
		LogLevel:     logLevel,
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ProfilePath:  os.Getenv("GANTRY_PROFILE"),
	}
}
