// Package config loads Nurture configuration from environment variables and
// an optional YAML file.
//
// # Environment
//
// Server settings:
//
//	NURTURE_HOST="0.0.0.0"
//	NURTURE_PORT="8080"
//	NURTURE_HEALTH_PORT="9090"
//	NURTURE_REFRESH_PER_MINUTE="30"
//
// Storage settings:
//
//	NURTURE_POSTGRES_URL="postgres://localhost/nurture?sslmode=disable"
//	NURTURE_POSTGRES_REPLICA_URLS="postgres://replica1/nurture,postgres://replica2/nurture"
//	NURTURE_REDIS_URL="redis://localhost:6379/0"
//	NURTURE_SNAPSHOT_TTL="24h"
//	NURTURE_S3_BUCKET="nurture-exports"
//	NURTURE_ARCHIVE_DIR="/var/lib/nurture/exports"
//
// Analytics settings:
//
//	NURTURE_TIMEZONE="America/New_York"
//	NURTURE_FETCH_TIMEOUT="30s"
//	NURTURE_CACHE_SIZE="16"
//	NURTURE_CONFIG_FILE="/etc/nurture/analytics.yaml"
//
// Observability settings:
//
//	NURTURE_LOG_LEVEL="info"
//	NURTURE_OTEL_ENABLED="true"
//	NURTURE_OTEL_ENDPOINT="otel-collector:4317"
//
// # File
//
// The YAML file holds settings that operators edit by hand: the aggregator
// cron schedule and the brain-profile palette. WatchPalette reloads the
// palette without a restart.
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
