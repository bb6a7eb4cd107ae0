package handler

import (
	"encoding/json"
	"net/http"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/service"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Statement & forecast
// ============================================================

// GET /v1/statement?start&end&category&type&base&target
// Missing bounds fall back to the default dashboard range.
func statementHandler(svc *service.CashFlow, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/statement")
		defer span.End()

		def, err := svc.DefaultRange(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		filter, err := parseFilter(r, &def)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		q := r.URL.Query()
		stmt, err := svc.Statement(ctx, service.StatementRequest{
			Filter: filter,
			Base:   q.Get("base"),
			Target: q.Get("target"),
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		span.SetAttributes(attribute.Int("statement.rows", len(stmt.Rows)))
		writeJSON(w, http.StatusOK, stmt)
	}
}

// GET /v1/forecast?start&end&category&type&periods&base&target
func forecastHandler(svc *service.CashFlow, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/forecast")
		defer span.End()

		filter, err := parseFilter(r, nil)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		periods, err := parsePeriods(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		q := r.URL.Query()
		report, err := svc.Forecast(ctx, service.ForecastRequest{
			Filter:  filter,
			Periods: periods,
			Base:    q.Get("base"),
			Target:  q.Get("target"),
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

type forecastSeriesRequest struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Periods int        `json:"periods"`
}

// POST /v1/forecast/series
// Body: {"columns": ["date", "amount"], "rows": [["2024-01-01", "120.50"]], "periods": 6}
func forecastSeriesHandler(svc *service.CashFlow, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/forecast/series")
		defer span.End()

		var req forecastSeriesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Periods == 0 {
			req.Periods = service.DefaultForecastPeriods
		}
		periods, err := checkPeriods(req.Periods)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		forecast, err := svc.ForecastSeries(ctx, req.Columns, req.Rows, periods)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, forecast)
	}
}

type reconcileRequest struct {
	InitialBalance *decimal.Decimal `json:"initial_balance"`
	Rows           []domain.NetRow  `json:"rows"`
}

type reconcileResponse struct {
	InitialBalance decimal.Decimal        `json:"initial_balance"`
	Balances       []domain.BalanceRecord `json:"balances"`
}

// POST /v1/reconcile
// Rows are scanned in the order given; initial_balance defaults to the
// configured one.
func reconcileHandler(svc *service.CashFlow, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/reconcile")
		defer span.End()

		var req reconcileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		initial := svc.InitialBalance()
		if req.InitialBalance != nil {
			initial = *req.InitialBalance
		}

		writeJSON(w, http.StatusOK, reconcileResponse{
			InitialBalance: initial,
			Balances:       svc.Reconcile(req.Rows, req.InitialBalance),
		})
	}
}

// GET /v1/rates?base&target
func rateHandler(svc *service.CashFlow, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/rates")
		defer span.End()

		q := r.URL.Query()
		rate, err := svc.Rate(ctx, q.Get("base"), q.Get("target"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		span.SetAttributes(attribute.String("rate.source", rate.Source))
		writeJSON(w, http.StatusOK, rate)
	}
}
