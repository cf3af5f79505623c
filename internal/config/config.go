package config

import (
	"strings"
	"time"
)

// Config holds every tunable of the scanning engine. All values come from
// the environment with defaults that match production behavior.
type Config struct {
	Port        string
	Environment string

	// Redis (optional result archive). Empty URL disables it.
	RedisURL string

	// Cache behavior for per-source fetch results.
	CacheMaxSize     int
	CacheTTL         time.Duration
	CacheStaleWindow time.Duration
	CacheVersion     string

	// Circuit breaker defaults, applied per service key.
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerResetTimeout     time.Duration

	// Retry policy for source fetches.
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	// Scan lifecycle.
	ScanTimeout      time.Duration
	FailedResultTTL  time.Duration
	RetentionHorizon time.Duration
	ReaperInterval   time.Duration

	// Metrics.
	MetricsBufferSize    int
	MetricsFlushInterval time.Duration

	// Sources.
	Platforms         []string
	SourceBaseURLs    map[string]string
	SourceRateLimit   float64 // requests per second per platform
	SourceRateBurst   int
	SourceHTTPTimeout time.Duration
}

// Load builds the configuration from the environment.
func Load() (*Config, error) {
	LoadEnvOnce()

	platforms := strings.Split(GetEnvWithFallback("PLATFORMS", "tiktok,instagram,youtube"), ",")
	for i := range platforms {
		platforms[i] = strings.TrimSpace(platforms[i])
	}

	baseURLs := make(map[string]string, len(platforms))
	for _, p := range platforms {
		envKey := "SOURCE_URL_" + strings.ToUpper(p)
		baseURLs[p] = GetEnvWithFallback(envKey, "")
	}

	return &Config{
		Port:        GetEnvWithFallback("PORT", "8080"),
		Environment: GetEnvWithFallback("ENVIRONMENT", "development"),

		RedisURL: GetEnvWithFallback("REDIS_URL", ""),

		CacheMaxSize:     GetEnvInt("CACHE_MAX_SIZE", 500),
		CacheTTL:         GetEnvDuration("CACHE_TTL", 15*time.Minute),
		CacheStaleWindow: GetEnvDuration("CACHE_STALE_WINDOW", 30*time.Minute),
		CacheVersion:     GetEnvWithFallback("CACHE_VERSION", "v1"),

		BreakerFailureThreshold: GetEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerSuccessThreshold: GetEnvInt("BREAKER_SUCCESS_THRESHOLD", 2),
		BreakerResetTimeout:     GetEnvDuration("BREAKER_RESET_TIMEOUT", 60*time.Second),

		RetryMaxAttempts: GetEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   GetEnvDuration("RETRY_BASE_DELAY", 500*time.Millisecond),
		RetryMaxDelay:    GetEnvDuration("RETRY_MAX_DELAY", 10*time.Second),

		ScanTimeout:      GetEnvDuration("SCAN_TIMEOUT", 5*time.Minute),
		FailedResultTTL:  GetEnvDuration("FAILED_RESULT_TTL", 5*time.Minute),
		RetentionHorizon: GetEnvDuration("RETENTION_HORIZON", 24*time.Hour),
		ReaperInterval:   GetEnvDuration("REAPER_INTERVAL", time.Hour),

		MetricsBufferSize:    GetEnvInt("METRICS_BUFFER_SIZE", 1000),
		MetricsFlushInterval: GetEnvDuration("METRICS_FLUSH_INTERVAL", 5*time.Minute),

		Platforms:         platforms,
		SourceBaseURLs:    baseURLs,
		SourceRateLimit:   float64(GetEnvInt("SOURCE_RATE_LIMIT", 5)),
		SourceRateBurst:   GetEnvInt("SOURCE_RATE_BURST", 10),
		SourceHTTPTimeout: GetEnvDuration("SOURCE_HTTP_TIMEOUT", 15*time.Second),
	}, nil
}
