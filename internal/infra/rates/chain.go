package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/port"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IdentityName is the source label for same-currency lookups.
const IdentityName = "identity"

// Chain asks each provider in turn and returns the first answer.
type Chain struct {
	providers []port.RateProvider
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewChain creates a chain over providers, tried in order.
func NewChain(providers []port.RateProvider, metrics *observability.Metrics, logger *zap.Logger) *Chain {
	return &Chain{providers: providers, metrics: metrics, logger: logger}
}

// Lookup resolves base→target. It returns domain.ErrRateUnavailable when
// every provider fails.
func (c *Chain) Lookup(ctx context.Context, base, target string) (*domain.Rate, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	target = strings.ToUpper(strings.TrimSpace(target))
	if base == "" || target == "" {
		return nil, &domain.ErrValidation{Field: "currency", Message: "base and target are required"}
	}

	if base == target {
		c.metrics.IncrRateLookup(IdentityName)
		return &domain.Rate{Base: base, Target: target, Value: decimal.NewFromInt(1), Source: IdentityName}, nil
	}

	for _, p := range c.providers {
		value, err := p.Rate(ctx, base, target)
		if err != nil {
			if !errors.Is(err, domain.ErrRateUnavailable) {
				c.metrics.IncrExternalError(p.Name())
			}
			c.logger.Debug("rate provider failed",
				zap.String("provider", p.Name()),
				zap.String("pair", base+"_"+target),
				zap.Error(err),
			)
			continue
		}
		c.metrics.IncrRateLookup(p.Name())
		return &domain.Rate{Base: base, Target: target, Value: value, Source: p.Name()}, nil
	}

	c.logger.Warn("no exchange rate available", zap.String("pair", base+"_"+target))
	return nil, fmt.Errorf("%s_%s: %w", base, target, domain.ErrRateUnavailable)
}

// Options configures Build.
type Options struct {
	// Kinds lists provider kinds in lookup order; nil means DefaultKinds.
	Kinds []string
	// URLs overrides provider endpoints by kind.
	URLs map[string]string
	// Static overrides or extends DefaultStaticRates.
	Static  map[string]string
	Timeout time.Duration
}

// Build assembles the HTTP providers followed by the static table.
func Build(opts Options, metrics *observability.Metrics, logger *zap.Logger) (*Chain, error) {
	kinds := opts.Kinds
	if kinds == nil {
		kinds = DefaultKinds
	}

	providers := make([]port.RateProvider, 0, len(kinds)+1)
	for _, kind := range kinds {
		p, err := NewProvider(kind, opts.URLs[kind], opts.Timeout, logger)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	static, err := NewStaticTable(opts.Static)
	if err != nil {
		return nil, err
	}
	providers = append(providers, static)

	return NewChain(providers, metrics, logger), nil
}
