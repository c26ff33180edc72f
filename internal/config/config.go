package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	LogLevel          string
	WorkerCount       int
	SourceExt         string
	ExtractedFileName string
	DatabaseURL       string
	FetchTimeout      time.Duration
	CatalogCacheSize  int
}

// Load reads an optional .env file and the G11N_* environment variables.
func Load(logger zerolog.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg("No .env file found, using environment variables")
	}

	return &Config{
		LogLevel:          getEnv("G11N_LOG_LEVEL", "info"),
		WorkerCount:       getEnvInt("G11N_WORKER_COUNT", 8),
		SourceExt:         getEnv("G11N_SOURCE_EXT", "ts,tsx,js,jsx"),
		ExtractedFileName: getEnv("G11N_EXTRACTED_FILE_NAME", "extracted-messages.json"),
		DatabaseURL:       getEnv("G11N_DATABASE_URL", ""),
		FetchTimeout:      getEnvDuration("G11N_FETCH_TIMEOUT", 30*time.Second),
		CatalogCacheSize:  getEnvInt("G11N_CATALOG_CACHE_SIZE", 32),
	}
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
