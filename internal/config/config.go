// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxRequestBodyBytes int64

	// Store settings. DatabaseURL selects the backend: postgres:// for
	// Postgres, sqlite:// or file: for the embedded store.
	DatabaseURL     string
	MigrationsRetry int

	// CatalogPath points at a YAML feature catalog. Empty uses the built-in one.
	CatalogPath string

	// Lifecycle settings.
	StrictTransitions bool

	// Assistant settings.
	AssistantLanguage      string // "fr" or "en"
	AssistantMaxReferences int
	AnthropicAPIKey        string // Empty disables the intent parser.
	IntentModel            string
	IntentTimeout          time.Duration

	// Rate limiting for the assistant endpoint.
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// Every malformed variable is reported, not just the first.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		DatabaseURL:       envStr("DATABASE_URL", "sqlite://netops.db"),
		CatalogPath:       envStr("NETOPS_CATALOG_PATH", ""),
		AssistantLanguage: strings.ToLower(envStr("NETOPS_ASSISTANT_LANGUAGE", "fr")),
		AnthropicAPIKey:   envStr("ANTHROPIC_API_KEY", ""),
		IntentModel:       envStr("NETOPS_INTENT_MODEL", "claude-3-5-haiku-latest"),
		OTELEndpoint:      envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:       envStr("OTEL_SERVICE_NAME", "netops"),
		LogLevel:          envStr("NETOPS_LOG_LEVEL", "info"),
	}

	var err error
	cfg.Port, err = envInt("NETOPS_PORT", 8080)
	collect(err)
	cfg.ReadTimeout, err = envDuration("NETOPS_READ_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.WriteTimeout, err = envDuration("NETOPS_WRITE_TIMEOUT", 30*time.Second)
	collect(err)
	maxBody, err := envInt("NETOPS_MAX_REQUEST_BODY_BYTES", 1*1024*1024)
	collect(err)
	cfg.MaxRequestBodyBytes = int64(maxBody)
	cfg.MigrationsRetry, err = envInt("NETOPS_MIGRATIONS_RETRY", 3)
	collect(err)
	cfg.StrictTransitions, err = envBool("NETOPS_STRICT_TRANSITIONS", false)
	collect(err)
	cfg.AssistantMaxReferences, err = envInt("NETOPS_ASSISTANT_MAX_REFERENCES", 12)
	collect(err)
	cfg.IntentTimeout, err = envDuration("NETOPS_INTENT_TIMEOUT", 5*time.Second)
	collect(err)
	cfg.RateLimitEnabled, err = envBool("NETOPS_RATE_LIMIT_ENABLED", true)
	collect(err)
	cfg.RateLimitRPS, err = envFloat("NETOPS_RATE_LIMIT_RPS", 2)
	collect(err)
	cfg.RateLimitBurst, err = envInt("NETOPS_RATE_LIMIT_BURST", 10)
	collect(err)
	cfg.OTELInsecure, err = envBool("OTEL_EXPORTER_OTLP_INSECURE", false)
	collect(err)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and in range.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: NETOPS_PORT must be between 0 and 65535")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: NETOPS_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.AssistantMaxReferences <= 0 {
		return fmt.Errorf("config: NETOPS_ASSISTANT_MAX_REFERENCES must be positive")
	}
	if c.AssistantLanguage != "fr" && c.AssistantLanguage != "en" {
		return fmt.Errorf("config: NETOPS_ASSISTANT_LANGUAGE must be \"fr\" or \"en\"")
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("config: NETOPS_RATE_LIMIT_RPS and NETOPS_RATE_LIMIT_BURST must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
