package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds the service configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	DatabaseMigrate    bool
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	CORSAllowedOrigins []string
	TrustProxyHeaders  bool

	Engine    EngineConfig
	HTTP      HTTPConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Obs       ObsConfig
}

// EngineConfig bounds the input accepted by a single evaluation.
type EngineConfig struct {
	MaxCartLines   int
	MaxConfigBytes int
}

// HTTPConfig tunes the HTTP surface.
type HTTPConfig struct {
	BodyLimitBytes         int64
	SecurityHeadersEnabled bool
	ReadTimeout            time.Duration
	WriteTimeout           time.Duration
	ShutdownTimeout        time.Duration
}

// CacheConfig controls the stored definition cache.
type CacheConfig struct {
	DefinitionTTL time.Duration
}

// RateLimitConfig controls the per client limiter on the run endpoint.
type RateLimitConfig struct {
	Window time.Duration
	Max    int
}

// AuditConfig controls the admin mutation trail.
type AuditConfig struct {
	Enabled       bool
	SamplingRate  float64
	RetainEntries int
}

// ObsConfig controls logging, metrics and tracing.
type ObsConfig struct {
	LogFormat            string
	LogLevel             string
	MetricsNamespace     string
	HTTPBucketsMS        string
	EnablePrometheus     bool
	EnableTracing        bool
	OTLPEndpoint         string
	TracingSamplingRatio float64
	ServiceName          string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		DatabaseMigrate:    parseBool(k.String("DATABASE_MIGRATE"), false),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:        strings.TrimSpace(k.String("JWT_AUDIENCE")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		TrustProxyHeaders:  parseBool(k.String("TRUST_PROXY_HEADERS"), false),
		Engine: EngineConfig{
			MaxCartLines:   parseInt(k.String("ENGINE_MAX_CART_LINES"), 200),
			MaxConfigBytes: parseInt(k.String("ENGINE_MAX_CONFIG_BYTES"), 64<<10),
		},
		HTTP: HTTPConfig{
			BodyLimitBytes:         int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),
			SecurityHeadersEnabled: parseBool(k.String("SECURITY_HEADERS_ENABLED"), true),
			ReadTimeout:            parseDuration(k.String("HTTP_READ_TIMEOUT"), "10s"),
			WriteTimeout:           parseDuration(k.String("HTTP_WRITE_TIMEOUT"), "10s"),
			ShutdownTimeout:        parseDuration(k.String("HTTP_SHUTDOWN_TIMEOUT"), "15s"),
		},
		Cache: CacheConfig{
			DefinitionTTL: parseDuration(k.String("DEFINITION_CACHE_TTL"), "5m"),
		},
		RateLimit: RateLimitConfig{
			Window: parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
			Max:    parseInt(k.String("RATE_LIMIT_MAX"), 600),
		},
		Audit: AuditConfig{
			Enabled:       parseBool(k.String("AUDIT_ENABLED"), true),
			SamplingRate:  parseFloat(k.String("AUDIT_SAMPLING_RATE"), 1),
			RetainEntries: parseInt(k.String("AUDIT_RETAIN_ENTRIES"), 500),
		},
		Obs: ObsConfig{
			LogFormat:            valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:             valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace:     valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "discount"),
			HTTPBucketsMS:        k.String("OBS_HTTP_BUCKETS_MS"),
			EnablePrometheus:     parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			EnableTracing:        parseBool(k.String("OBS_ENABLE_TRACING"), false),
			OTLPEndpoint:         strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			TracingSamplingRatio: parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
			ServiceName:          valueOrDefault(k.String("OBS_SERVICE_NAME"), "discount-engine"),
		},
	}

	if cfg.Engine.MaxCartLines <= 0 {
		return nil, fmt.Errorf("ENGINE_MAX_CART_LINES must be positive, got %d", cfg.Engine.MaxCartLines)
	}
	if cfg.Engine.MaxConfigBytes <= 0 {
		return nil, fmt.Errorf("ENGINE_MAX_CONFIG_BYTES must be positive, got %d", cfg.Engine.MaxConfigBytes)
	}
	if cfg.RateLimit.Max < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX must not be negative, got %d", cfg.RateLimit.Max)
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// AdminEnabled reports whether the admin API can authenticate anyone.
func (c *Config) AdminEnabled() bool {
	return strings.TrimSpace(c.JWTSecret) != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests applies env overrides for the duration of a single Load call.
// An empty value unsets the variable.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]*string, len(env))
	for key, value := range env {
		if prev, ok := os.LookupEnv(key); ok {
			original[key] = &prev
		} else {
			original[key] = nil
		}
		if err := setEnvVar(key, value); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]*string) error {
	var errs []string
	for key, value := range values {
		var err error
		if value == nil {
			err = os.Unsetenv(key)
		} else {
			err = os.Setenv(key, *value)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
