package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Natural-language queries
// ============================================================

type askRequest struct {
	Question string `json:"question"`
	Model    string `json:"model,omitempty"`
}

type askResponse struct {
	*domain.QueryRun
	Error string `json:"error,omitempty"`
}

// POST /v1/query
// A failed translation or execution still returns the run, so the caller
// can show the translated query next to the error.
func askHandler(svc *service.QueryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/query")
		defer span.End()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			writeError(w, http.StatusBadRequest, "question is required")
			return
		}

		run, err := svc.Ask(ctx, req.Question, req.Model)
		if err != nil {
			if run == nil {
				handleServiceError(w, err, logger)
				return
			}
			status := errorStatus(err)
			logger.Info("query run failed",
				zap.String("run_id", run.ID),
				zap.Int("status", status),
				zap.Error(err),
			)
			writeJSON(w, status, askResponse{QueryRun: run, Error: err.Error()})
			return
		}

		span.SetAttributes(attribute.String("query.run_id", run.ID))
		writeJSON(w, http.StatusOK, askResponse{QueryRun: run})
	}
}

type sqlRequest struct {
	Query string `json:"query"`
}

// POST /v1/query/sql
func executeSQLHandler(svc *service.QueryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/query/sql")
		defer span.End()

		var req sqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.Execute(ctx, req.Query)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}
