// Package llm adapts hosted language models to port.Completer.
//
// Two providers are supported: Google Gemini through the genai SDK and any
// OpenAI-compatible chat completions endpoint over plain HTTP. Both share
// the same outbound limiter, circuit breaker and token accounting.
package llm

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/infra/resilience"
	"github.com/boddenberg/cashflowiq-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("llm")

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config selects and tunes a provider.
type Config struct {
	Provider      string
	Model         string
	APIKey        string
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
}

// New builds the completer named by cfg.Provider.
func New(ctx context.Context, cfg Config, metrics *observability.Metrics, logger *zap.Logger) (port.Completer, error) {
	limiter := NewLimiter(cfg.RatePerSecond)
	switch cfg.Provider {
	case ProviderGemini, "":
		cb := resilience.NewCircuitBreaker("gemini", logger)
		return NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.Timeout, limiter, cb, metrics)
	case ProviderOpenAI:
		cb := resilience.NewCircuitBreaker("openai", logger)
		httpClient := &http.Client{Timeout: cfg.Timeout}
		return NewChatClient(httpClient, cfg.BaseURL, cfg.APIKey, cfg.Model, limiter, cb, metrics), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// NewLimiter allows perSecond calls per second with a burst of one.
// A non-positive rate disables limiting.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 || math.IsInf(perSecond, 1) {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}
