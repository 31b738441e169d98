// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// RedisConfig provides Redis connection settings shared by the queue,
// the rate limiter and the postal cache.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// PipelineConfig provides settings for the enrichment queue and worker pool.
type PipelineConfig interface {
	RedisConfig
	GetQueueName() string
	GetWorkerConcurrency() int
	GetJobMaxRetry() int
}

// EnrichmentConfig provides settings for the external lookup stages.
type EnrichmentConfig interface {
	GetPostalLookupURL() string
	GetRegistryLookupURL() string
	GetGeocoderURL() string
	IsGeocoderEnabled() bool
	GetPostalCacheTTL() time.Duration
}

// IngestConfig provides settings for the ingestion batcher.
type IngestConfig interface {
	GetIngestBatchSize() int
	GetIngestBatchSpacing() time.Duration
}

// RecalcConfig provides settings for the score recalculation coordinator.
type RecalcConfig interface {
	GetRecalcBatchSize() int
	GetRecalcBatchPause() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                string
	HTTPAddr           string
	DatabaseURL        string
	RedisURL           string
	RedisTLSInsecure   bool
	QueueName          string
	WorkerConcurrency  int
	JobMaxRetry        int
	PostalLookupURL    string
	RegistryLookupURL  string
	GeocoderURL        string
	PostalCacheTTL     time.Duration
	IngestBatchSize    int
	IngestBatchSpacing time.Duration
	RecalcBatchSize    int
	RecalcBatchPause   time.Duration
	CORSAllowAll       bool
	CORSOrigins        []string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// PipelineConfig implementation
func (c *Config) GetQueueName() string      { return c.QueueName }
func (c *Config) GetWorkerConcurrency() int { return c.WorkerConcurrency }
func (c *Config) GetJobMaxRetry() int       { return c.JobMaxRetry }

// EnrichmentConfig implementation
func (c *Config) GetPostalLookupURL() string       { return c.PostalLookupURL }
func (c *Config) GetRegistryLookupURL() string     { return c.RegistryLookupURL }
func (c *Config) GetGeocoderURL() string           { return c.GeocoderURL }
func (c *Config) IsGeocoderEnabled() bool          { return c.GeocoderURL != "" }
func (c *Config) GetPostalCacheTTL() time.Duration { return c.PostalCacheTTL }

// IngestConfig implementation
func (c *Config) GetIngestBatchSize() int              { return c.IngestBatchSize }
func (c *Config) GetIngestBatchSpacing() time.Duration { return c.IngestBatchSpacing }

// RecalcConfig implementation
func (c *Config) GetRecalcBatchSize() int            { return c.RecalcBatchSize }
func (c *Config) GetRecalcBatchPause() time.Duration { return c.RecalcBatchPause }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:   strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		QueueName:          getEnv("QUEUE_NAME", "enrichment"),
		WorkerConcurrency:  mustInt(getEnv("WORKER_CONCURRENCY", "5")),
		JobMaxRetry:        mustInt(getEnv("JOB_MAX_RETRY", "3")),
		PostalLookupURL:    getEnv("POSTAL_LOOKUP_URL", "https://viacep.com.br/ws"),
		RegistryLookupURL:  getEnv("REGISTRY_LOOKUP_URL", "https://brasilapi.com.br/api/cnpj/v1"),
		GeocoderURL:        getEnv("GEOCODER_URL", ""),
		PostalCacheTTL:     mustDuration(getEnv("POSTAL_CACHE_TTL", "24h")),
		IngestBatchSize:    mustInt(getEnv("INGEST_BATCH_SIZE", "3")),
		IngestBatchSpacing: mustDuration(getEnv("INGEST_BATCH_SPACING", "15s")),
		RecalcBatchSize:    mustInt(getEnv("RECALC_BATCH_SIZE", "50")),
		RecalcBatchPause:   mustDuration(getEnv("RECALC_BATCH_PAUSE", "200ms")),
		CORSAllowAll:       strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true"),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200")),
	}

	if containsWildcard(cfg.CORSOrigins) {
		cfg.CORSAllowAll = true
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.WorkerConcurrency < 1 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if cfg.IngestBatchSize < 1 {
		return nil, fmt.Errorf("INGEST_BATCH_SIZE must be at least 1")
	}
	if cfg.IngestBatchSpacing <= 0 {
		return nil, fmt.Errorf("INGEST_BATCH_SPACING must be a positive duration")
	}
	if cfg.RecalcBatchSize < 1 {
		return nil, fmt.Errorf("RECALC_BATCH_SIZE must be at least 1")
	}
	if cfg.RecalcBatchPause <= 0 {
		return nil, fmt.Errorf("RECALC_BATCH_PAUSE must be a positive duration")
	}
	if cfg.PostalCacheTTL <= 0 {
		return nil, fmt.Errorf("POSTAL_CACHE_TTL must be a positive duration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
