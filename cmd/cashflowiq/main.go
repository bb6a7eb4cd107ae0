package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/config"
	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/handler"
	"github.com/boddenberg/cashflowiq-go/internal/infra/cache"
	"github.com/boddenberg/cashflowiq-go/internal/infra/ledger"
	"github.com/boddenberg/cashflowiq-go/internal/infra/llm"
	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/infra/rates"
	"github.com/boddenberg/cashflowiq-go/internal/infra/resilience"
	"github.com/boddenberg/cashflowiq-go/internal/infra/sandbox"
	"github.com/boddenberg/cashflowiq-go/internal/port"
	"github.com/boddenberg/cashflowiq-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("ledger_backend", cfg.LedgerBackend),
		zap.String("ledger_path", cfg.LedgerPath),
		zap.String("initial_balance", cfg.InitialBalance.String()),
		zap.Duration("store_cache_ttl", cfg.StoreCacheTTL),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.Duration("llm_timeout", cfg.LLMTimeout),
		zap.Duration("rate_timeout", cfg.RateTimeout),
		zap.String("config_file", cfg.ConfigFile),
	)

	decimal.MarshalJSONWithoutQuotes = true

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "cashflowiq")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Ledger ---
	ctx := context.Background()
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}
	backend, err := ledger.Open(ctx, cfg.LedgerBackend, cfg.LedgerPath, resilienceCfg)
	if err != nil {
		logger.Fatal("failed to open ledger", zap.String("backend", cfg.LedgerBackend), zap.Error(err))
	}
	if closer, ok := backend.(io.Closer); ok {
		defer closer.Close()
	}

	storeCache := cache.New[[]domain.Transaction](cfg.StoreCacheTTL)
	defer storeCache.Close()
	store := service.NewStore(backend, storeCache, metrics, logger)

	// --- Exchange rates ---
	rateChain, err := rates.Build(rates.Options{
		Kinds:   cfg.RateProviders,
		URLs:    cfg.RateURLs,
		Static:  cfg.StaticRates,
		Timeout: cfg.RateTimeout,
	}, metrics, logger)
	if err != nil {
		logger.Fatal("failed to build rate providers", zap.Error(err))
	}

	// --- Language model ---
	var completer port.Completer
	if cfg.LLMAPIKey == "" {
		logger.Warn("LLM_API_KEY not set: natural-language queries and contract analysis are unavailable")
	} else {
		completer, err = llm.New(ctx, llm.Config{
			Provider:      cfg.LLMProvider,
			Model:         cfg.LLMModel,
			APIKey:        cfg.LLMAPIKey,
			BaseURL:       cfg.LLMBaseURL,
			Timeout:       cfg.LLMTimeout,
			RatePerSecond: cfg.LLMRatePerSecond,
		}, metrics, logger)
		if err != nil {
			logger.Error("language model unavailable", zap.String("provider", cfg.LLMProvider), zap.Error(err))
			completer = nil
		}
	}

	// --- Services ---
	engine := sandbox.NewEngine(cfg.SandboxMaxConcurrency, cfg.SandboxTimeout, metrics, logger)
	translator := service.NewTranslator(completer, cfg.LLMModel, metrics, logger)

	services := handler.Services{
		Store:     store,
		CashFlow:  service.NewCashFlow(store, rateChain, cfg.InitialBalance, metrics, logger),
		Ledger:    service.NewLedgerService(store, ledger.CSVCodec{}, metrics, logger),
		Query:     service.NewQueryService(store, translator, engine, metrics, logger),
		Contracts: service.NewContractAnalyzer(completer, cfg.LLMModel, metrics, logger),
	}

	// Warm the cache so the first request does not pay for the load.
	if txns, err := store.Snapshot(ctx); err != nil {
		logger.Warn("initial ledger load failed", zap.Error(err))
	} else {
		logger.Info("ledger loaded", zap.String("backend", store.Backend()), zap.Int("rows", len(txns)))
	}

	// --- Router ---
	router := handler.NewRouter(services, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
