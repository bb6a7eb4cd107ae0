package handler

import (
	"encoding/json"
	"net/http"

	"github.com/boddenberg/cashflowiq-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Contracts
// ============================================================

type contractRequest struct {
	Text     string `json:"text"`
	Question string `json:"question,omitempty"`
	Model    string `json:"model,omitempty"`
}

// POST /v1/contracts/analyze
// Body: {"text": "...", "model": "gemini-2.0-flash"}
func analyzeContractHandler(svc *service.ContractAnalyzer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/contracts/analyze")
		defer span.End()

		var req contractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		analysis, err := svc.Analyze(ctx, req.Text, req.Model)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, analysis)
	}
}

// POST /v1/contracts/ask
// Body: {"text": "...", "question": "When is payment due?"}
func askContractHandler(svc *service.ContractAnalyzer, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/contracts/ask")
		defer span.End()

		var req contractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		answer, err := svc.Ask(ctx, req.Text, req.Question, req.Model)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, answer)
	}
}
