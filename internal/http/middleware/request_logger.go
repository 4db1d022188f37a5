package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// RequestLogger emits one structured line per request after the response is
// written: method, path, status, bytes, latency, and the caller's account
// header so per-tenant traffic can be filtered in the logs. The request id
// comes from chi's RequestID middleware, which must run first.
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", r.RemoteAddr,
			}
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				attrs = append(attrs, "request_id", reqID)
			}
			if accountID := r.Header.Get("X-Account-Id"); accountID != "" {
				attrs = append(attrs, "account_id", accountID)
			}
			logger.Info("http request", attrs...)
		})
	}
}
