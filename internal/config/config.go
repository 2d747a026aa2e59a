package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string

	ShopDomain     string        `validate:"required,hostname"`
	AccessToken    string        `validate:"required"`
	APIVersion     string        `validate:"required"`
	PageSize       int           `validate:"min=1,max=250"`
	RequestTimeout time.Duration `validate:"gt=0"`

	MetafieldNamespace string        `validate:"required,min=3"`
	BatchSize          int           `validate:"min=1,max=25"`
	BatchDelay         time.Duration `validate:"gte=0"`
	CurrencyCode       string        `validate:"required,len=3"`

	OutboundMaxAttempts int `validate:"min=1,max=10"`
	RetryBase           time.Duration
	RetryJitterPercent  float64 `validate:"gte=0,lte=1"`
	CircuitMinRequests  int     `validate:"min=1"`
	CircuitFailureRate  float64 `validate:"gt=0,lte=1"`
	CircuitOpenFor      time.Duration

	RedisURL       string
	RunLockTTL     time.Duration `validate:"gt=0"`
	WorkerSchedule string
	WorkerAddr     string
	OpsTriggerRate string
	OpsCORSOrigins []string

	PushgatewayURL       string `validate:"omitempty,url"`
	TracingEndpoint      string `validate:"omitempty,url"`
	TracingSamplingRatio float64
	LogFormat            string `validate:"oneof=json console text"`
	LogLevel             string
	MetricsBuckets       string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv: valueOrDefault(k.String("APP_ENV"), "development"),

		ShopDomain:     normalizeDomain(k.String("SHOPIFY_SHOP_DOMAIN")),
		AccessToken:    strings.TrimSpace(k.String("SHOPIFY_ADMIN_ACCESS_TOKEN")),
		APIVersion:     valueOrDefault(k.String("SHOPIFY_API_VERSION"), "2025-04"),
		PageSize:       parseInt(k.String("SHOPIFY_PAGE_SIZE"), 250),
		RequestTimeout: parseDuration(k.String("SHOPIFY_REQUEST_TIMEOUT"), "30s"),

		MetafieldNamespace: valueOrDefault(k.String("METAFIELD_NAMESPACE"), "stats"),
		BatchSize:          parseInt(k.String("METAFIELD_BATCH_SIZE"), 25),
		BatchDelay:         parseDuration(k.String("METAFIELD_BATCH_DELAY"), "1s"),
		CurrencyCode:       strings.ToUpper(valueOrDefault(k.String("SALES_CURRENCY_CODE"), "JPY")),

		OutboundMaxAttempts: parseInt(k.String("OUTBOUND_MAX_ATTEMPTS"), 1),
		RetryBase:           parseDuration(k.String("RETRY_BASE"), "200ms"),
		RetryJitterPercent:  parseFloat(k.String("RETRY_JITTER_PERCENT"), 0.2),
		CircuitMinRequests:  parseInt(k.String("CIRCUIT_SHOPIFY_MIN_REQ"), 5),
		CircuitFailureRate:  parseFloat(k.String("CIRCUIT_SHOPIFY_FAILURE_RATE"), 0.5),
		CircuitOpenFor:      parseDuration(k.String("CIRCUIT_SHOPIFY_OPEN_FOR"), "30s"),

		RedisURL:       strings.TrimSpace(k.String("REDIS_URL")),
		RunLockTTL:     parseDuration(k.String("RUN_LOCK_TTL"), "30m"),
		WorkerSchedule: valueOrDefault(k.String("WORKER_SCHEDULE"), "0 3 * * *"),
		WorkerAddr:     valueOrDefault(k.String("WORKER_ADDR"), ":9090"),
		OpsTriggerRate: valueOrDefault(k.String("OPS_TRIGGER_RATE"), "5-H"),
		OpsCORSOrigins: splitAndTrim(k.String("OPS_CORS_ALLOWED_ORIGINS")),

		PushgatewayURL:       strings.TrimSpace(k.String("PUSHGATEWAY_URL")),
		TracingEndpoint:      strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		TracingSamplingRatio: parseFloat(k.String("OTEL_SAMPLING_RATIO"), 1),
		LogFormat:            strings.ToLower(valueOrDefault(k.String("OBS_LOG_FORMAT"), "json")),
		LogLevel:             strings.ToLower(valueOrDefault(k.String("OBS_LOG_LEVEL"), "info")),
		MetricsBuckets:       k.String("METRICS_LATENCY_BUCKETS"),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envNames = map[string]string{
	"ShopDomain":          "SHOPIFY_SHOP_DOMAIN",
	"AccessToken":         "SHOPIFY_ADMIN_ACCESS_TOKEN",
	"APIVersion":          "SHOPIFY_API_VERSION",
	"PageSize":            "SHOPIFY_PAGE_SIZE",
	"RequestTimeout":      "SHOPIFY_REQUEST_TIMEOUT",
	"MetafieldNamespace":  "METAFIELD_NAMESPACE",
	"BatchSize":           "METAFIELD_BATCH_SIZE",
	"BatchDelay":          "METAFIELD_BATCH_DELAY",
	"CurrencyCode":        "SALES_CURRENCY_CODE",
	"OutboundMaxAttempts": "OUTBOUND_MAX_ATTEMPTS",
	"RetryJitterPercent":  "RETRY_JITTER_PERCENT",
	"CircuitMinRequests":  "CIRCUIT_SHOPIFY_MIN_REQ",
	"CircuitFailureRate":  "CIRCUIT_SHOPIFY_FAILURE_RATE",
	"RunLockTTL":          "RUN_LOCK_TTL",
	"PushgatewayURL":      "PUSHGATEWAY_URL",
	"TracingEndpoint":     "OTEL_EXPORTER_OTLP_ENDPOINT",
	"LogFormat":           "OBS_LOG_FORMAT",
}

func validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := envNames[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		if fe.Tag() == "required" {
			msgs = append(msgs, name+" is required")
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", name, fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// RequireRedis reports an error when REDIS_URL is unset. The worker needs it
// for the run lock, the run log and the task queue.
func (c *Config) RequireRedis() error {
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	return nil
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func normalizeDomain(value string) string {
	v := strings.TrimSpace(value)
	v = strings.TrimPrefix(strings.TrimPrefix(v, "https://"), "http://")
	return strings.TrimSuffix(v, "/")
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
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
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

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
