// Package rates looks up currency exchange rates through an ordered chain
// of public HTTP providers, ending in a static table.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("rates")

// Provider kinds accepted by NewProvider.
const (
	KindExchangerateHost = "exchangerate.host"
	KindExchangeRatesAPI = "exchangeratesapi.io"
	KindFrankfurter      = "frankfurter.app"
)

// DefaultURLs maps each provider kind to its public endpoint.
var DefaultURLs = map[string]string{
	KindExchangerateHost: "https://api.exchangerate.host/convert",
	KindExchangeRatesAPI: "https://api.exchangeratesapi.io/latest",
	KindFrankfurter:      "https://api.frankfurter.app/latest",
}

// DefaultKinds is the order providers are tried in.
var DefaultKinds = []string{KindExchangerateHost, KindExchangeRatesAPI, KindFrankfurter}

// HTTPProvider fetches a single rate from a JSON API.
type HTTPProvider struct {
	name       string
	endpoint   string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	query      func(base, target string) url.Values
	extract    func(body *json.Decoder, target string) (decimal.Decimal, error)
}

// NewProvider builds the provider of the given kind. An empty endpoint uses
// the kind's public URL. Each provider gets its own breaker and timeout.
func NewProvider(kind, endpoint string, timeout time.Duration, logger *zap.Logger) (*HTTPProvider, error) {
	if endpoint == "" {
		endpoint = DefaultURLs[kind]
	}
	p := &HTTPProvider{
		name:       kind,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		cb:         resilience.NewCircuitBreaker("rates-"+kind, logger),
	}

	switch kind {
	case KindExchangerateHost:
		p.query = func(base, target string) url.Values {
			return url.Values{"from": {base}, "to": {target}}
		}
		p.extract = extractResult
	case KindExchangeRatesAPI:
		p.query = func(base, target string) url.Values {
			return url.Values{"base": {base}, "symbols": {target}}
		}
		p.extract = extractRates
	case KindFrankfurter:
		p.query = func(base, target string) url.Values {
			return url.Values{"from": {base}, "to": {target}}
		}
		p.extract = extractRates
	default:
		return nil, fmt.Errorf("unknown rate provider %q", kind)
	}
	return p, nil
}

// Name returns the provider kind.
func (p *HTTPProvider) Name() string {
	return p.name
}

// Rate returns how many target units one base unit buys.
func (p *HTTPProvider) Rate(ctx context.Context, base, target string) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "HTTPProvider.Rate")
	defer span.End()
	span.SetAttributes(
		attribute.String("rates.provider", p.name),
		attribute.String("rates.pair", base+"_"+target),
	)

	result, err := p.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+p.query(base, target).Encode(), nil)
		if err != nil {
			return nil, err
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s returned status %d", p.name, resp.StatusCode)
		}
		return p.extract(json.NewDecoder(resp.Body), target)
	})
	if err != nil {
		return decimal.Zero, resilience.ExternalError(p.name, err)
	}

	rate := result.(decimal.Decimal)
	if !rate.IsPositive() {
		return decimal.Zero, resilience.ExternalError(p.name, fmt.Errorf("non-positive rate %s", rate))
	}
	return rate, nil
}

func extractResult(dec *json.Decoder, _ string) (decimal.Decimal, error) {
	var body struct {
		Result *decimal.Decimal `json:"result"`
	}
	if err := dec.Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode rate response: %w", err)
	}
	if body.Result == nil {
		return decimal.Zero, fmt.Errorf("rate response has no result")
	}
	return *body.Result, nil
}

func extractRates(dec *json.Decoder, target string) (decimal.Decimal, error) {
	var body struct {
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := dec.Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode rate response: %w", err)
	}
	rate, ok := body.Rates[target]
	if !ok {
		return decimal.Zero, fmt.Errorf("rate response has no %s entry", target)
	}
	return rate, nil
}
