package observability

import (
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	queries         *prometheus.CounterVec
	translations    *prometheus.CounterVec
	rateLookups     *prometheus.CounterVec
	ledgerRows      prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cashflowiq_operation_duration_seconds",
				Help:    "Duration of engine operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflowiq_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflowiq_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflowiq_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflowiq_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		queries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflowiq_sandbox_queries_total",
				Help: "Sandboxed query executions by outcome.",
			},
			[]string{"outcome"},
		),
		translations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflowiq_translations_total",
				Help: "Question-to-query translations by status.",
			},
			[]string{"status"},
		),
		rateLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflowiq_rate_lookups_total",
				Help: "Exchange rate lookups by answering source.",
			},
			[]string{"source"},
		),
		ledgerRows: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cashflowiq_ledger_rows",
				Help: "Transactions currently held by the store.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrQuery counts a sandbox execution. outcome is "ok", "empty" or "error".
func (m *Metrics) IncrQuery(outcome string) {
	m.queries.WithLabelValues(outcome).Inc()
}

// IncrTranslation counts a translation by its status.
func (m *Metrics) IncrTranslation(status domain.TranslationStatus) {
	m.translations.WithLabelValues(string(status)).Inc()
}

// IncrRateLookup counts which source answered a rate lookup.
func (m *Metrics) IncrRateLookup(source string) {
	m.rateLookups.WithLabelValues(source).Inc()
}

// SetLedgerRows records the size of the loaded ledger.
func (m *Metrics) SetLedgerRows(n int) {
	m.ledgerRows.Set(float64(n))
}

// Snapshot returns the engine metrics for GET /v1/metrics/engine.
func (m *Metrics) Snapshot() *domain.EngineMetrics {
	ok := getCounterValue(m.queries, "ok")
	empty := getCounterValue(m.queries, "empty")
	failed := getCounterValue(m.queries, "error")
	hits := getCounterValue(m.cacheHits, "ledger")
	misses := getCounterValue(m.cacheMisses, "ledger")

	total := ok + empty + failed
	failureRate := float64(0)
	if total > 0 {
		failureRate = failed / total
	}
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.EngineMetrics{
		QueriesExecuted:     int64(total),
		QueryFailureRate:    failureRate,
		TranslationFailures: int64(getCounterValue(m.translations, string(domain.TranslationFailed))),
		PromptTokens:        int64(getCounterValue(m.tokensUsed, "prompt")),
		CompletionTokens:    int64(getCounterValue(m.tokensUsed, "completion")),
		StoreCacheHitRate:   hitRate,
		RateFallbacks:       int64(getCounterValue(m.rateLookups, "static")),
		LedgerRows:          int64(gaugeValue(m.ledgerRows)),
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func gaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil || m.Gauge == nil {
		return 0
	}
	return m.Gauge.GetValue()
}
