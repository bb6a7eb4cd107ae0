package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
	"github.com/boddenberg/cashflowiq-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services groups the application services served over HTTP. A nil service
// leaves its routes answering 503.
type Services struct {
	Store     *service.Store
	CashFlow  *service.CashFlow
	Ledger    *service.LedgerService
	Query     *service.QueryService
	Contracts *service.ContractAnalyzer
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(RequestMetrics(metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(MaxBodySize(maxBodyBytes))

		// =============================================
		// 1. Transactions
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(requireService(svc.Ledger != nil, "ledger"))
			r.Get("/transactions", listTransactionsHandler(svc.Ledger, logger))
			r.Get("/transactions/options", transactionOptionsHandler(svc.Ledger, logger))
			r.Get("/transactions/export", exportTransactionsHandler(svc.Ledger, logger))
			r.Post("/transactions/import", importTransactionsHandler(svc.Ledger, logger))
		})

		// =============================================
		// 2. Cash flow
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(requireService(svc.CashFlow != nil, "cashflow"))
			r.Get("/statement", statementHandler(svc.CashFlow, logger))
			r.Get("/forecast", forecastHandler(svc.CashFlow, logger))
			r.Post("/forecast/series", forecastSeriesHandler(svc.CashFlow, logger))
			r.Post("/reconcile", reconcileHandler(svc.CashFlow, logger))
			r.Get("/rates", rateHandler(svc.CashFlow, logger))
		})

		// =============================================
		// 3. Natural-language queries
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(requireService(svc.Query != nil, "query"))
			r.Post("/query", askHandler(svc.Query, logger))
			r.Post("/query/sql", executeSQLHandler(svc.Query, logger))
		})

		// =============================================
		// 4. Contracts
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(requireService(svc.Contracts != nil, "contracts"))
			r.Post("/contracts/analyze", analyzeContractHandler(svc.Contracts, logger))
			r.Post("/contracts/ask", askContractHandler(svc.Contracts, logger))
		})

		// =============================================
		// 5. Metrics
		// =============================================
		r.Get("/metrics/engine", engineMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(store *service.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "cashflowiq-api", Status: "healthy", LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			var txns []domain.Transaction
			err := store.Ping(r.Context())
			if err == nil {
				txns, err = store.Snapshot(r.Context())
			}
			status, detail := "healthy", ""
			if err != nil {
				logger.Warn("health check: ledger unavailable", zap.Error(err))
				status, detail = "degraded", err.Error()
			} else if len(txns) == 0 {
				detail = "ledger is empty"
			}
			services = append(services, domain.ServiceHealth{
				Name:        "ledger-" + store.Backend(),
				Status:      status,
				LatencyMs:   time.Since(start).Milliseconds(),
				Detail:      detail,
				LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func engineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
