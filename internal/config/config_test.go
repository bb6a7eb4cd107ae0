package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/config"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 8080 || cfg.LedgerBackend != "csv" || cfg.LLMProvider != "gemini" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if !cfg.InitialBalance.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("expected initial balance 100000, got %s", cfg.InitialBalance)
	}
	if cfg.RateTimeout != 3*time.Second {
		t.Errorf("expected 3s rate timeout, got %s", cfg.RateTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate, got %v", err)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LEDGER_BACKEND", "SQLite")
	t.Setenv("INITIAL_BALANCE", "2500.50")
	t.Setenv("STORE_CACHE_TTL", "30s")
	t.Setenv("LLM_RATE_PER_SECOND", "0.5")
	t.Setenv("SANDBOX_MAX_CONCURRENCY", "not-a-number")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 9090 || cfg.LedgerBackend != "sqlite" || cfg.StoreCacheTTL != 30*time.Second {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.InitialBalance.Equal(decimal.RequireFromString("2500.50")) {
		t.Errorf("expected 2500.50, got %s", cfg.InitialBalance)
	}
	if cfg.LLMRatePerSecond != 0.5 {
		t.Errorf("expected 0.5, got %v", cfg.LLMRatePerSecond)
	}
	if cfg.SandboxMaxConcurrency != 4 {
		t.Errorf("expected invalid value to fall back to 4, got %d", cfg.SandboxMaxConcurrency)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `ledger:
  backend: xlsx
  path: data/ledger.xlsx
  initial_balance: "50000"
llm:
  provider: openai
  model: gpt-4o-mini
rates:
  providers: [frankfurter.app]
  urls:
    frankfurter.app: http://localhost:9000/latest
  static:
    USD_EUR: 0.9
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LEDGER_PATH", "ignored.csv")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.LedgerBackend != "xlsx" || cfg.LedgerPath != "data/ledger.xlsx" {
		t.Errorf("expected file to override ledger settings, got %q %q", cfg.LedgerBackend, cfg.LedgerPath)
	}
	if !cfg.InitialBalance.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("expected 50000, got %s", cfg.InitialBalance)
	}
	if cfg.LLMProvider != "openai" || cfg.LLMModel != "gpt-4o-mini" {
		t.Errorf("unexpected llm settings %q %q", cfg.LLMProvider, cfg.LLMModel)
	}
	if len(cfg.RateProviders) != 1 || cfg.RateURLs["frankfurter.app"] != "http://localhost:9000/latest" {
		t.Errorf("unexpected rate providers %v %v", cfg.RateProviders, cfg.RateURLs)
	}
	if cfg.StaticRates["USD_EUR"] != "0.9" {
		t.Errorf("expected static override 0.9, got %q", cfg.StaticRates["USD_EUR"])
	}
}

func TestLoad_BadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("ledger: [unterminated"), 0o644)
	t.Setenv("CONFIG_FILE", path)

	if _, err := config.Load(); err == nil {
		t.Error("expected parse error")
	}

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := config.Load(); err == nil {
		t.Error("expected error for a missing config file")
	}
}

func TestValidate_CollectsProblems(t *testing.T) {
	cfg, _ := config.Load()
	cfg.Port = 0
	cfg.LedgerBackend = "postgres"
	cfg.LLMProvider = "claude"
	cfg.SandboxMaxConcurrency = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"invalid port", "ledger backend", "llm provider", "sandbox max concurrency"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	os.WriteFile(path, []byte("CASHFLOWIQ_TEST_A=from-file\nCASHFLOWIQ_TEST_B=from-file\n"), 0o644)
	t.Setenv("CASHFLOWIQ_TEST_A", "from-env")
	os.Unsetenv("CASHFLOWIQ_TEST_B")
	t.Cleanup(func() { os.Unsetenv("CASHFLOWIQ_TEST_B") })

	if err := config.LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if v := os.Getenv("CASHFLOWIQ_TEST_A"); v != "from-env" {
		t.Errorf("existing variable must win, got %q", v)
	}
	if v := os.Getenv("CASHFLOWIQ_TEST_B"); v != "from-file" {
		t.Errorf("expected value from file, got %q", v)
	}
}
