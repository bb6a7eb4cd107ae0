package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/cashflowiq-go/internal/domain"
	"github.com/boddenberg/cashflowiq-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

// MaxForecastPeriods bounds the periods accepted over HTTP.
const MaxForecastPeriods = 24

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func parsePagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = service.DefaultPageSize
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= 100 {
			pageSize = ps
		}
	}
	return
}

// parseFilter reads start, end, category and type from the query string.
// Missing bounds are taken from def; category and type accept comma
// separated lists.
func parseFilter(r *http.Request, def *domain.DateRange) (domain.FilterSpec, error) {
	q := r.URL.Query()
	var spec domain.FilterSpec

	start, end := q.Get("start"), q.Get("end")
	if start != "" || end != "" || def != nil {
		var rng domain.DateRange
		if def != nil {
			rng = *def
		}
		if start != "" {
			d, err := domain.ParseDate(start)
			if err != nil {
				return spec, &domain.ErrValidation{Field: "start", Message: err.Error()}
			}
			rng.Start = d
		}
		if end != "" {
			d, err := domain.ParseDate(end)
			if err != nil {
				return spec, &domain.ErrValidation{Field: "end", Message: err.Error()}
			}
			rng.End = d
		}
		if rng.Start.IsZero() || rng.End.IsZero() {
			return spec, &domain.ErrValidation{Field: "start", Message: "start and end are both required"}
		}
		spec.Range = &rng
	}

	spec.Categories = splitList(q["category"])
	spec.Types = splitList(q["type"])
	return spec, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parsePeriods(r *http.Request) (int, error) {
	v := r.URL.Query().Get("periods")
	if v == "" {
		return service.DefaultForecastPeriods, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &domain.ErrValidation{Field: "periods", Message: "must be an integer"}
	}
	return checkPeriods(n)
}

func checkPeriods(n int) (int, error) {
	if n < 1 || n > MaxForecastPeriods {
		return 0, &domain.ErrValidation{Field: "periods", Message: "must be between 1 and " + strconv.Itoa(MaxForecastPeriods)}
	}
	return n, nil
}

// errorStatus maps a domain error to its HTTP status.
func errorStatus(err error) int {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var invalidRange *domain.ErrInvalidDateRange
	var data *domain.ErrData
	var schema *domain.ErrSchema
	var translation *domain.ErrTranslation
	var execution *domain.ErrExecution
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &validation), errors.As(err, &invalidRange), errors.As(err, &data):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &schema), errors.As(err, &translation), errors.As(err, &execution),
		errors.Is(err, domain.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.As(err, &circuitOpen), errors.Is(err, domain.ErrRateUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &external):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status := errorStatus(err)
	switch {
	case status == http.StatusInternalServerError:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, status, "internal server error")
		return
	case status >= 500:
		logger.Error("upstream failure", zap.Int("status", status), zap.Error(err))
	case status == http.StatusUnprocessableEntity:
		logger.Warn("request could not be processed", zap.String("error", err.Error()))
	default:
		logger.Debug("client error", zap.Int("status", status), zap.String("error", err.Error()))
	}
	writeError(w, status, err.Error())
}
