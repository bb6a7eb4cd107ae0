package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/analytics"
	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultCurrency labels ledger amounts when no base currency is given.
const DefaultCurrency = "USD"

// DefaultForecastPeriods is the dashboard's forecast horizon in months.
const DefaultForecastPeriods = 6

// EarliestStatementDate is the lower bound of the default statement range.
var EarliestStatementDate = domain.NewDate(2024, time.January, 1)

// StatementRequest selects and optionally converts the statement input.
type StatementRequest struct {
	Filter domain.FilterSpec
	Base   string
	Target string
}

// ForecastRequest selects the history a forecast is computed from and
// optionally the currency it is reported in.
type ForecastRequest struct {
	Filter  domain.FilterSpec
	Periods int
	Base    string
	Target  string
}

// CashFlow builds statements, forecasts and reconciliations over the store.
type CashFlow struct {
	store          *Store
	rates          port.RateLookup
	initialBalance decimal.Decimal
	now            func() time.Time
	metrics        *observability.Metrics
	logger         *zap.Logger
}

// NewCashFlow creates the cash-flow service. initialBalance seeds every
// statement and any projection without history.
func NewCashFlow(store *Store, rates port.RateLookup, initialBalance decimal.Decimal, metrics *observability.Metrics, logger *zap.Logger) *CashFlow {
	return &CashFlow{
		store:          store,
		rates:          rates,
		initialBalance: initialBalance,
		now:            time.Now,
		metrics:        metrics,
		logger:         logger,
	}
}

// InitialBalance returns the configured opening balance.
func (c *CashFlow) InitialBalance() decimal.Decimal {
	return c.initialBalance
}

// Statement filters the ledger, aggregates it per day and reconciles the
// running balance. When Target names a different currency the amounts are
// converted first; if no rate can be found the statement is returned in
// the base currency with RateUnavailable set.
func (c *CashFlow) Statement(ctx context.Context, req StatementRequest) (*domain.Statement, error) {
	ctx, span := tracer.Start(ctx, "CashFlow.Statement")
	defer span.End()

	start := time.Now()
	defer func() {
		c.metrics.RecordRequestDuration("statement", time.Since(start))
	}()

	txns, err := c.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	conv, err := c.resolveCurrency(ctx, "statement", req.Base, req.Target)
	if err != nil {
		return nil, err
	}
	txns = conv.apply(txns)

	st := &domain.Statement{
		Currency:        conv.currency,
		Rate:            conv.rate,
		RateUnavailable: conv.unavailable,
		InitialBalance:  c.initialBalance,
		FinalBalance:    c.initialBalance,
	}

	filtered, err := analytics.Filter(txns, req.Filter)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("statement.transactions", len(filtered)))

	daily := analytics.AggregateDaily(filtered)
	st.Rows = analytics.BuildStatement(daily, c.initialBalance)
	st.Empty = len(st.Rows) == 0
	st.TotalInflows, st.TotalOutflows = decimal.Zero, decimal.Zero
	for _, r := range st.Rows {
		st.TotalInflows = st.TotalInflows.Add(r.Inflows)
		st.TotalOutflows = st.TotalOutflows.Add(r.Outflows)
	}
	if n := len(st.Rows); n > 0 {
		st.FinalBalance = st.Rows[n-1].Closing
	}

	st.Monthly = analytics.MonthlyFlows(filtered)
	st.IncomeByType, st.ExpenseByType = analytics.TotalsByType(filtered)
	return st, nil
}

// Forecast extrapolates the filtered history and projects balances over the
// forecast periods. If the filter leaves nothing, the whole ledger is used
// for the trend while the projection starts from the initial balance.
// Conversion follows the same rules as Statement.
func (c *CashFlow) Forecast(ctx context.Context, req ForecastRequest) (*domain.ForecastReport, error) {
	ctx, span := tracer.Start(ctx, "CashFlow.Forecast")
	defer span.End()

	start := time.Now()
	defer func() {
		c.metrics.RecordRequestDuration("forecast", time.Since(start))
	}()

	if req.Periods <= 0 {
		return nil, &domain.ErrValidation{Field: "periods", Message: "must be a positive integer"}
	}

	txns, err := c.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	conv, err := c.resolveCurrency(ctx, "forecast", req.Base, req.Target)
	if err != nil {
		return nil, err
	}
	txns = conv.apply(txns)

	filtered, err := analytics.Filter(txns, req.Filter)
	if err != nil {
		return nil, err
	}

	history, usedFull := filtered, false
	if len(filtered) == 0 {
		history, usedFull = txns, true
	}
	span.SetAttributes(
		attribute.Int("forecast.history", len(history)),
		attribute.Bool("forecast.full_history", usedFull),
	)

	f, err := analytics.Forecast(analytics.History(history), req.Periods)
	if err != nil {
		return nil, err
	}

	seed := analytics.ProjectionSeed(filtered, c.initialBalance)
	return &domain.ForecastReport{
		Forecast:        *f,
		Currency:        conv.currency,
		Rate:            conv.rate,
		RateUnavailable: conv.unavailable,
		UsedFullHistory: usedFull,
		SeedBalance:     seed,
		Projection:      analytics.ProjectForecast(f.Periods, seed),
	}, nil
}

// ForecastSeries forecasts an ad-hoc table that must carry "date" and
// "amount" columns.
func (c *CashFlow) ForecastSeries(ctx context.Context, header []string, rows [][]string, periods int) (*domain.Forecast, error) {
	_, span := tracer.Start(ctx, "CashFlow.ForecastSeries")
	defer span.End()

	history, err := analytics.ParseHistory(header, rows)
	if err != nil {
		return nil, err
	}
	return analytics.Forecast(history, periods)
}

// Reconcile runs the running-balance scan over rows in the order given.
// A nil initial uses the configured initial balance.
func (c *CashFlow) Reconcile(rows []domain.NetRow, initial *decimal.Decimal) []domain.BalanceRecord {
	seed := c.initialBalance
	if initial != nil {
		seed = *initial
	}
	return analytics.ReconcileRows(rows, seed)
}

// DefaultRange is the statement range the dashboard opens with: from the
// later of EarliestStatementDate and the first ledger day, up to today.
func (c *CashFlow) DefaultRange(ctx context.Context) (domain.DateRange, error) {
	txns, err := c.store.Snapshot(ctx)
	if err != nil {
		return domain.DateRange{}, err
	}
	r := domain.DateRange{Start: EarliestStatementDate, End: domain.DateOf(c.now())}
	if first, _, ok := analytics.Span(txns); ok && first.After(r.Start) {
		r.Start = first
	}
	if r.Start.After(r.End) {
		r.End = r.Start
	}
	return r, nil
}

// Rate resolves an exchange rate through the configured fallbacks.
func (c *CashFlow) Rate(ctx context.Context, base, target string) (*domain.Rate, error) {
	ctx, span := tracer.Start(ctx, "CashFlow.Rate")
	defer span.End()
	return c.rates.Lookup(ctx, base, target)
}

// SetClock replaces the clock used for default ranges.
func (c *CashFlow) SetClock(now func() time.Time) {
	c.now = now
}

// conversion is the currency amounts are reported in. rate is nil when
// amounts stay in the base currency.
type conversion struct {
	currency    string
	rate        *domain.Rate
	unavailable bool
}

func (v conversion) apply(txns []domain.Transaction) []domain.Transaction {
	if v.rate == nil {
		return txns
	}
	return convert(txns, v.rate.Value)
}

// resolveCurrency looks up the base to target rate. A missing rate is not
// an error: amounts stay in base and unavailable is set.
func (c *CashFlow) resolveCurrency(ctx context.Context, op, base, target string) (conversion, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		base = DefaultCurrency
	}
	target = strings.ToUpper(strings.TrimSpace(target))

	conv := conversion{currency: base}
	if target == "" || target == base {
		return conv, nil
	}

	rate, err := c.rates.Lookup(ctx, base, target)
	switch {
	case errors.Is(err, domain.ErrRateUnavailable):
		c.logger.Warn(op+" left unconverted",
			zap.String("base", base),
			zap.String("target", target),
		)
		conv.unavailable = true
	case err != nil:
		return conversion{}, err
	default:
		conv.rate = rate
		conv.currency = rate.Target
	}
	return conv, nil
}

func convert(txns []domain.Transaction, rate decimal.Decimal) []domain.Transaction {
	out := make([]domain.Transaction, len(txns))
	for i, t := range txns {
		t.Amount = t.Amount.Mul(rate)
		out[i] = t
	}
	return out
}
