package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/frahmantamala/spm-sp2d/internal"
	"github.com/frahmantamala/spm-sp2d/pkg/logger"
)

// RecoveryMiddleware turns a panic into a 500 carrying the trace id. The panic value
// only goes to the log.
func RecoveryMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				ctx := r.Context()
				lg := base
				if logger.TraceID(ctx) != "" {
					lg = logger.From(ctx)
				}
				lg.ErrorContext(ctx, "panic recovered",
					"error", rec,
					"method", r.Method,
					"url", r.URL.Path,
					"stack", string(debug.Stack()))

				body := map[string]interface{}{
					"error": internal.NewInternalError("Internal server error", nil),
				}
				if id := logger.TraceID(ctx); id != "" {
					body["trace_id"] = id
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(body)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
