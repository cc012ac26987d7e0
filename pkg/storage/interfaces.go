package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

// Archive keeps a copy of every CSV export
type Archive interface {
	// Put stores body under key, replacing any previous object
	Put(ctx context.Context, key string, body []byte, contentType string) error
	// Check verifies the archive is reachable
	Check(ctx context.Context) error
}

// Config for storage backends
type Config struct {
	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs []string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration
	PostgresMaxLifetime time.Duration
	PostgresMaxIdleTime time.Duration

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int
	RedisKeyPrefix  string
	SnapshotTTL     time.Duration

	// Archive config. S3 is used when S3Bucket is set, otherwise ArchiveDir.
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
	ArchivePrefix  string
	ArchiveDir     string
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns:    10,
		PostgresMinConns:    2,
		PostgresTimeout:     10 * time.Second,
		PostgresMaxLifetime: time.Hour,
		PostgresMaxIdleTime: 10 * time.Minute,
		RedisMaxRetries:     3,
		RedisPoolSize:       10,
		RedisKeyPrefix:      "nurture:",
		SnapshotTTL:         24 * time.Hour,
		S3Region:            "us-east-1",
		ArchivePrefix:       "exports",
	}
}

// ArchiveKey returns the object key for an export file taken at t:
// <prefix>/YYYY/MM/DD/<filename>. The date is read in t's own location, so
// pass t in the zone the filename was dated in.
func ArchiveKey(prefix, filename string, t time.Time) string {
	key := path.Join(
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%02d", t.Day()),
		filename,
	)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = path.Join(prefix, key)
	}
	return key
}
