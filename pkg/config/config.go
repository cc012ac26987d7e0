package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nurturehq/nurture/pkg/analytics"
	"github.com/nurturehq/nurture/pkg/httputil"
	"github.com/nurturehq/nurture/pkg/observability"
	"github.com/nurturehq/nurture/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Analytics engine configuration
	Analytics AnalyticsConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// Refresh and export requests allowed per client per minute
	RefreshPerMinute int

	// Browser origins allowed to call the API; empty disables CORS
	CORSOrigins []string

	// Load balancer networks whose X-Forwarded-For header is believed
	TrustedProxies []string
}

// Proxies parses TrustedProxies
func (c ServerConfig) Proxies() (httputil.TrustedProxies, error) {
	return httputil.ParseTrustedProxies(c.TrustedProxies)
}

// AnalyticsConfig holds snapshot computation settings
type AnalyticsConfig struct {
	Timezone     string
	FetchTimeout time.Duration
	CacheSize    int
	CacheTTL     time.Duration
	TopN         int
	// MaxAge is how long a snapshot is reused for repeat window selections
	MaxAge time.Duration

	// ConfigFile is an optional YAML file with the palette and schedule
	ConfigFile string
	Schedule   string
	Palette    analytics.Palette
}

// Location resolves Timezone, defaulting to UTC
func (c AnalyticsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ServiceConfig converts c to the analytics service settings
func (c AnalyticsConfig) ServiceConfig() (analytics.ServiceConfig, error) {
	loc, err := c.Location()
	if err != nil {
		return analytics.ServiceConfig{}, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	sc := analytics.DefaultServiceConfig()
	sc.Location = loc
	if c.FetchTimeout > 0 {
		sc.FetchTimeout = c.FetchTimeout
	}
	if c.CacheSize > 0 {
		sc.CacheSize = c.CacheSize
	}
	if c.CacheTTL > 0 {
		sc.CacheTTL = c.CacheTTL
	}
	if c.TopN > 0 {
		sc.TopN = c.TopN
	}
	if c.MaxAge > 0 {
		sc.MaxAge = c.MaxAge
	}
	return sc, nil
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// OTel converts c to the tracing and metrics exporter settings
func (c ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.OTelEnabled,
		Endpoint:       c.OTelEndpoint,
		ServiceName:    c.OTelServiceName,
		ServiceVersion: c.OTelServiceVersion,
		Insecure:       c.OTelInsecure,
		SampleRatio:    c.OTelSampleRatio,
	}
}

// LoadConfig loads configuration from environment variables and, when
// NURTURE_CONFIG_FILE is set, the YAML file it names
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Analytics:     loadAnalyticsConfig(),
		Observability: loadObservabilityConfig(),
	}

	if path := cfg.Analytics.ConfigFile; path != "" {
		file, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		file.apply(&cfg.Analytics)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:             getEnv("NURTURE_HOST", "0.0.0.0"),
		Port:             getEnv("NURTURE_PORT", "8080"),
		ReadTimeout:      getEnvDuration("NURTURE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:     getEnvDuration("NURTURE_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:      getEnvDuration("NURTURE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:  getEnvDuration("NURTURE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:       getEnv("NURTURE_HEALTH_PORT", "9090"),
		RefreshPerMinute: getEnvInt("NURTURE_REFRESH_PER_MINUTE", 30),
		CORSOrigins:      splitList(getEnv("NURTURE_CORS_ORIGINS", "")),
		TrustedProxies:   splitList(getEnv("NURTURE_TRUSTED_PROXIES", "")),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// PostgreSQL config
	cfg.PostgresURL = getEnv("NURTURE_POSTGRES_URL", cfg.PostgresURL)
	if replicaURLs := getEnv("NURTURE_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = splitList(replicaURLs)
	}
	if maxConns := getEnvInt("NURTURE_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("NURTURE_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	cfg.PostgresTimeout = getEnvDuration("NURTURE_POSTGRES_TIMEOUT", cfg.PostgresTimeout)

	// Redis config
	cfg.RedisURL = getEnv("NURTURE_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("NURTURE_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("NURTURE_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisPoolSize := getEnvInt("NURTURE_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}
	cfg.RedisKeyPrefix = getEnv("NURTURE_REDIS_KEY_PREFIX", cfg.RedisKeyPrefix)
	cfg.SnapshotTTL = getEnvDuration("NURTURE_SNAPSHOT_TTL", cfg.SnapshotTTL)

	// Archive config
	cfg.S3Endpoint = getEnv("NURTURE_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Region = getEnv("NURTURE_S3_REGION", cfg.S3Region)
	cfg.S3Bucket = getEnv("NURTURE_S3_BUCKET", cfg.S3Bucket)
	cfg.S3AccessKey = getEnv("NURTURE_S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnv("NURTURE_S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3UsePathStyle = getEnvBool("NURTURE_S3_USE_PATH_STYLE", cfg.S3UsePathStyle)
	cfg.ArchivePrefix = getEnv("NURTURE_ARCHIVE_PREFIX", cfg.ArchivePrefix)
	cfg.ArchiveDir = getEnv("NURTURE_ARCHIVE_DIR", cfg.ArchiveDir)

	return cfg
}

func loadAnalyticsConfig() AnalyticsConfig {
	defaults := analytics.DefaultServiceConfig()
	return AnalyticsConfig{
		Timezone:     getEnv("NURTURE_TIMEZONE", "UTC"),
		FetchTimeout: getEnvDuration("NURTURE_FETCH_TIMEOUT", defaults.FetchTimeout),
		CacheSize:    getEnvInt("NURTURE_CACHE_SIZE", defaults.CacheSize),
		CacheTTL:     getEnvDuration("NURTURE_CACHE_TTL", defaults.CacheTTL),
		TopN:         getEnvInt("NURTURE_TOP_N", defaults.TopN),
		MaxAge:       getEnvDuration("NURTURE_SNAPSHOT_MAX_AGE", defaults.MaxAge),
		ConfigFile:   getEnv("NURTURE_CONFIG_FILE", ""),
		Schedule:     getEnv("NURTURE_SCHEDULE", DefaultSchedule),
		Palette:      analytics.DefaultPalette(),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLevel(getEnv("NURTURE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("NURTURE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("NURTURE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("NURTURE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("NURTURE_OTEL_SERVICE_NAME", "nurture-analytics"),
		OTelServiceVersion: getEnv("NURTURE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("NURTURE_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("NURTURE_OTEL_SAMPLE_RATIO", 1),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if _, err := c.Server.Proxies(); err != nil {
		return err
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.S3Bucket != "" && c.Storage.S3Region == "" {
		return fmt.Errorf("S3 region is required when a bucket is set")
	}

	if _, err := c.Analytics.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Analytics.Timezone, err)
	}
	if c.Analytics.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.Analytics.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if err := ValidateSchedule(c.Analytics.Schedule); err != nil {
		return err
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
