// Package bootstrap wires the process-level runtime shared by the server and CLI tools.
package bootstrap

import (
	"context"
	"fmt"

	"fourwcycle/internal/cache"
	"fourwcycle/internal/config"
	"fourwcycle/internal/database"
	"fourwcycle/internal/observability"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ServiceName identifies this process in traces and metrics.
const ServiceName = "fourwcycle-api"

// InitRuntime connects to the database and Redis. The Redis client is nil when
// REDIS_URL is empty or unreachable; callers treat that as "features disabled".
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		cache.InitRedis(cfg.RedisURL)
		rdb = cache.GetClient()
	}
	return db, rdb, nil
}

// InitTracing configures the global tracer from cfg and returns its shutdown function.
func InitTracing(cfg *config.Config, version string) (func(context.Context) error, error) {
	return observability.InitTracing(observability.TracingConfig{
		ServiceName:    ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampleRatio,
	})
}
