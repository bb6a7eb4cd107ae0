package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults, then
// the optional overlay file named by CONFIG_FILE.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Ledger
	LedgerBackend  string
	LedgerPath     string
	InitialBalance decimal.Decimal
	StoreCacheTTL  time.Duration

	// Resilience
	MaxRetries            int
	InitialBackoff        time.Duration
	SandboxMaxConcurrency int
	SandboxTimeout        time.Duration

	// Language model
	LLMProvider      string
	LLMModel         string
	LLMAPIKey        string
	LLMBaseURL       string
	LLMTimeout       time.Duration
	LLMRatePerSecond float64

	// Exchange rates
	RateTimeout   time.Duration
	RateProviders []string
	RateURLs      map[string]string
	StaticRates   map[string]string

	// Observability
	OTLPEndpoint string

	// ConfigFile is the overlay file that was applied, if any.
	ConfigFile string
}

// Load reads configuration from environment variables with defaults and
// applies the overlay file named by CONFIG_FILE.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		LedgerBackend:  strings.ToLower(getEnv("LEDGER_BACKEND", "csv")),
		LedgerPath:     getEnv("LEDGER_PATH", "data/sample_data.csv"),
		InitialBalance: getEnvDecimal("INITIAL_BALANCE", decimal.NewFromInt(100000)),
		StoreCacheTTL:  getEnvDuration("STORE_CACHE_TTL", 5*time.Minute),

		MaxRetries:            getEnvInt("MAX_RETRIES", 3),
		InitialBackoff:        getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		SandboxMaxConcurrency: getEnvInt("SANDBOX_MAX_CONCURRENCY", 4),
		SandboxTimeout:        getEnvDuration("SANDBOX_TIMEOUT", 10*time.Second),

		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		LLMModel:         getEnv("LLM_MODEL", ""),
		LLMAPIKey:        getEnv("LLM_API_KEY", ""),
		LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
		LLMTimeout:       getEnvDuration("LLM_TIMEOUT", 30*time.Second),
		LLMRatePerSecond: getEnvFloat("LLM_RATE_PER_SECOND", 2),

		RateTimeout: getEnvDuration("RATE_TIMEOUT", 3*time.Second),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ConfigFile:   getEnv("CONFIG_FILE", ""),
	}

	if cfg.ConfigFile != "" {
		if err := cfg.ApplyFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}

	validBackends := []string{"csv", "xlsx", "sqlite"}
	if !slices.Contains(validBackends, c.LedgerBackend) {
		problems = append(problems, fmt.Sprintf("invalid ledger backend %q: must be one of %v", c.LedgerBackend, validBackends))
	}
	if c.LedgerPath == "" {
		problems = append(problems, "ledger path cannot be empty")
	}

	validProviders := []string{"gemini", "openai"}
	if !slices.Contains(validProviders, c.LLMProvider) {
		problems = append(problems, fmt.Sprintf("invalid llm provider %q: must be one of %v", c.LLMProvider, validProviders))
	}
	if c.LLMRatePerSecond < 0 {
		problems = append(problems, "llm rate per second cannot be negative")
	}

	if c.StoreCacheTTL <= 0 {
		problems = append(problems, "store cache ttl must be positive")
	}
	if c.SandboxMaxConcurrency < 1 {
		problems = append(problems, "sandbox max concurrency must be at least 1")
	}
	if c.RateTimeout <= 0 {
		problems = append(problems, "rate timeout must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return fallback
}
