package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/example/finance-core/pkg/audit"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func AuditMiddleware(a Auditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			a.Record(r.Context(), audit.RequestHandled, r.URL.Path, map[string]string{
				"method":      r.Method,
				"status":      strconv.Itoa(sw.status),
				"duration_ms": strconv.FormatInt(dur.Milliseconds(), 10),
			})
		})
	}
}
