package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/cashflowiq-go/internal/infra/observability"
)

// maxBodyBytes caps request bodies, CSV uploads included.
const maxBodyBytes = 10 << 20

// RequestMetrics records the duration of every request under its route
// pattern, e.g. "GET /v1/statement".
func RequestMetrics(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			metrics.RecordRequestDuration(r.Method+" "+observability.RoutePattern(r), time.Since(start))
		})
	}
}

// MaxBodySize rejects request bodies larger than n bytes.
func MaxBodySize(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requireService(available bool, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !available {
				writeError(w, http.StatusServiceUnavailable, name+" service is not configured")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
