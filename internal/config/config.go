package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL             string
	DatabaseAutoMigrate     bool
	DatabaseMaxOpenConns    int
	DatabaseMaxIdleConns    int
	DatabaseConnMaxLifetime time.Duration

	JWTIssuer          string
	JWTSecret          string
	JWTTTL             time.Duration
	CORSAllowedOrigins []string

	AuthRateLimitPerMin int
	APIRateLimitPerMin  int

	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	RateLimitRedisEnabled bool
	RateLimitRedisPrefix  string
	RateLimitFailClosed   bool

	AuthAbuseProtectionEnabled bool
	AuthAbuseFreeAttempts      int
	AuthAbuseBaseDelay         time.Duration
	AuthAbuseMultiplier        float64
	AuthAbuseMaxDelay          time.Duration
	AuthAbuseResetWindow       time.Duration
	AuthAbuseRedisEnabled      bool
	AuthAbuseRedisPrefix       string

	PriceCacheEnabled      bool
	PriceCacheTTL          time.Duration
	PriceCacheRedisEnabled bool
	PriceCacheRedisPrefix  string

	PostReactionDedupEnabled bool
	RankingDefaultLimit      int

	StorageEnabled       bool
	StorageEndpoint      string
	StorageAccessKey     string
	StorageSecretKey     string
	StorageBucket        string
	StorageRegion        string
	StorageUseSSL        bool
	ProductImageMaxBytes int64
	ProductImageURLTTL   time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string

	ReadinessProbeTimeout        time.Duration
	ServerStartGracePeriod       time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:                  env,
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		DatabaseAutoMigrate:  getEnvBool("DATABASE_AUTO_MIGRATE", isLocalLikeEnv(env)),
		DatabaseMaxOpenConns: getEnvInt("DATABASE_MAX_OPEN_CONNS", 25),
		DatabaseMaxIdleConns: getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
		JWTIssuer:            getEnv("JWT_ISSUER", "crowdprice-backend"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		CORSAllowedOrigins:   splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		AuthRateLimitPerMin:  getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),
		APIRateLimitPerMin:   getEnvInt("API_RATE_LIMIT_PER_MIN", 120),

		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		RateLimitRedisEnabled: getEnvBool("RATE_LIMIT_REDIS_ENABLED", false),
		RateLimitRedisPrefix:  getEnv("RATE_LIMIT_REDIS_PREFIX", "crowdprice:rl"),
		RateLimitFailClosed:   getEnvBool("RATE_LIMIT_FAIL_CLOSED", false),

		AuthAbuseProtectionEnabled: getEnvBool("AUTH_ABUSE_PROTECTION_ENABLED", true),
		AuthAbuseFreeAttempts:      getEnvInt("AUTH_ABUSE_FREE_ATTEMPTS", 5),
		AuthAbuseMultiplier:        getEnvFloat("AUTH_ABUSE_MULTIPLIER", 2),
		AuthAbuseRedisEnabled:      getEnvBool("AUTH_ABUSE_REDIS_ENABLED", false),
		AuthAbuseRedisPrefix:       getEnv("AUTH_ABUSE_REDIS_PREFIX", "crowdprice:abuse"),

		PriceCacheEnabled:      getEnvBool("PRICE_CACHE_ENABLED", true),
		PriceCacheRedisEnabled: getEnvBool("PRICE_CACHE_REDIS_ENABLED", false),
		PriceCacheRedisPrefix:  getEnv("PRICE_CACHE_REDIS_PREFIX", "crowdprice:prices"),

		PostReactionDedupEnabled: getEnvBool("POST_REACTION_DEDUP_ENABLED", false),
		RankingDefaultLimit:      getEnvInt("RANKING_DEFAULT_LIMIT", 4),

		StorageEnabled:       getEnvBool("STORAGE_ENABLED", false),
		StorageEndpoint:      getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey:     os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey:     os.Getenv("STORAGE_SECRET_KEY"),
		StorageBucket:        getEnv("STORAGE_BUCKET", "product-images"),
		StorageRegion:        getEnv("STORAGE_REGION", "us-east-1"),
		StorageUseSSL:        getEnvBool("STORAGE_USE_SSL", false),
		ProductImageMaxBytes: int64(getEnvInt("PRODUCT_IMAGE_MAX_BYTES", 5<<20)),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "crowdprice-backend"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", true),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", true),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"JWT_TTL", "1h", &cfg.JWTTTL},
		{"DATABASE_CONN_MAX_LIFETIME", "30m", &cfg.DatabaseConnMaxLifetime},
		{"PRICE_CACHE_TTL", "30s", &cfg.PriceCacheTTL},
		{"AUTH_ABUSE_BASE_DELAY", "2s", &cfg.AuthAbuseBaseDelay},
		{"AUTH_ABUSE_MAX_DELAY", "5m", &cfg.AuthAbuseMaxDelay},
		{"AUTH_ABUSE_RESET_WINDOW", "30m", &cfg.AuthAbuseResetWindow},
		{"PRODUCT_IMAGE_URL_TTL", "15m", &cfg.ProductImageURLTTL},
		{"OTEL_METRICS_EXPORT_INTERVAL", "10s", &cfg.OTELMetricsExportInterval},
		{"READINESS_PROBE_TIMEOUT", "1s", &cfg.ReadinessProbeTimeout},
		{"SERVER_START_GRACE_PERIOD", "0s", &cfg.ServerStartGracePeriod},
		{"SHUTDOWN_TIMEOUT", "20s", &cfg.ShutdownTimeout},
		{"SHUTDOWN_HTTP_DRAIN_TIMEOUT", "10s", &cfg.ShutdownHTTPDrainTimeout},
		{"SHUTDOWN_OBSERVABILITY_TIMEOUT", "8s", &cfg.ShutdownObservabilityTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 chars")
	}
	if c.JWTTTL <= 0 || c.JWTTTL > 24*time.Hour {
		errs = append(errs, "JWT_TTL must be between 1s and 24h")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if (c.RateLimitRedisEnabled || c.PriceCacheRedisEnabled || c.AuthAbuseRedisEnabled) && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when a redis-backed feature is enabled")
	}
	if c.AuthAbuseProtectionEnabled {
		if c.AuthAbuseFreeAttempts < 0 {
			errs = append(errs, "AUTH_ABUSE_FREE_ATTEMPTS must be >= 0")
		}
		if c.AuthAbuseBaseDelay <= 0 || c.AuthAbuseMaxDelay < c.AuthAbuseBaseDelay {
			errs = append(errs, "AUTH_ABUSE_BASE_DELAY must be > 0 and <= AUTH_ABUSE_MAX_DELAY")
		}
		if c.AuthAbuseMultiplier < 1 {
			errs = append(errs, "AUTH_ABUSE_MULTIPLIER must be >= 1")
		}
		if c.AuthAbuseResetWindow <= 0 {
			errs = append(errs, "AUTH_ABUSE_RESET_WINDOW must be > 0")
		}
	}
	if c.PriceCacheEnabled && c.PriceCacheTTL <= 0 {
		errs = append(errs, "PRICE_CACHE_TTL must be > 0 when PRICE_CACHE_ENABLED=true")
	}
	if c.RankingDefaultLimit < 1 || c.RankingDefaultLimit > 20 {
		errs = append(errs, "RANKING_DEFAULT_LIMIT must be between 1 and 20")
	}
	if c.StorageEnabled {
		if c.StorageEndpoint == "" || c.StorageBucket == "" {
			errs = append(errs, "STORAGE_ENDPOINT and STORAGE_BUCKET are required when STORAGE_ENABLED=true")
		}
		if c.StorageAccessKey == "" || c.StorageSecretKey == "" {
			errs = append(errs, "STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required when STORAGE_ENABLED=true")
		}
		if c.ProductImageMaxBytes <= 0 {
			errs = append(errs, "PRODUCT_IMAGE_MAX_BYTES must be > 0")
		}
		if c.ProductImageURLTTL <= 0 || c.ProductImageURLTTL > 7*24*time.Hour {
			errs = append(errs, "PRODUCT_IMAGE_URL_TTL must be between 1s and 7d")
		}
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if c.ReadinessProbeTimeout <= 0 {
		errs = append(errs, "READINESS_PROBE_TIMEOUT must be > 0")
	}
	if c.ServerStartGracePeriod < 0 {
		errs = append(errs, "SERVER_START_GRACE_PERIOD must be >= 0")
	}
	if c.ShutdownTimeout <= 0 || c.ShutdownHTTPDrainTimeout <= 0 || c.ShutdownObservabilityTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_* timeouts must be > 0")
	} else if c.ShutdownHTTPDrainTimeout+c.ShutdownObservabilityTimeout > c.ShutdownTimeout {
		errs = append(errs, "SHUTDOWN_HTTP_DRAIN_TIMEOUT + SHUTDOWN_OBSERVABILITY_TIMEOUT must not exceed SHUTDOWN_TIMEOUT")
	}

	if !isLocalLikeEnv(c.Env) {
		for _, origin := range c.CORSAllowedOrigins {
			if origin == "*" {
				errs = append(errs, "CORS_ALLOWED_ORIGINS must not contain * outside local environments")
				break
			}
		}
		if c.DatabaseAutoMigrate {
			errs = append(errs, "DATABASE_AUTO_MIGRATE must be false outside local environments; run the migrate tool")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isLocalLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local", "test":
		return true
	default:
		return false
	}
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
