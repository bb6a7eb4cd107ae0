package handler

import (
	"net/http"
	"strconv"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transactions
// ============================================================

// GET /v1/transactions?start&end&category&type&page&page_size
func listTransactionsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		filter, err := parseFilter(r, nil)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		page, pageSize := parsePagination(r)

		result, err := svc.List(ctx, filter, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Transaction]{
			Data:     result.Items,
			Total:    result.Total,
			Page:     page,
			PageSize: pageSize,
			HasMore:  result.HasMore,
		})
	}
}

// GET /v1/transactions/options
func transactionOptionsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/options")
		defer span.End()

		opts, err := svc.Options(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, opts)
	}
}

// GET /v1/transactions/export
func exportTransactionsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/export")
		defer span.End()

		w.Header().Set("Content-Type", svc.ContentType())
		w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
		if err := svc.Export(ctx, w); err != nil {
			// Headers may already be flushed; log and stop.
			logger.Error("export failed", zap.Error(err))
			return
		}
	}
}

// POST /v1/transactions/import?save=true
// The body is the raw CSV upload.
func importTransactionsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/import")
		defer span.End()

		save := false
		if v := r.URL.Query().Get("save"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "save must be a boolean")
				return
			}
			save = b
		}
		span.SetAttributes(attribute.Bool("import.save", save))

		result, err := svc.Import(ctx, r.Body, save)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		status := http.StatusOK
		if result.Saved {
			status = http.StatusCreated
		}
		writeJSON(w, status, result)
	}
}
