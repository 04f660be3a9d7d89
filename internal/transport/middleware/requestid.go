package middleware

import (
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"

	"github.com/frahmantamala/spm-sp2d/pkg/logger"
)

const TraceIDHeader = "X-Trace-ID"

// RequestID accepts the caller's X-Trace-ID or mints one, echoes it on the response and
// binds it, with chi's request id, to the context logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceIDHeader)
		if traceID == "" || len(traceID) > 128 {
			traceID = uuid.NewString()
		}

		ctx := logger.WithTraceID(r.Context(), traceID)
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = logger.With(ctx, "request_id", reqID)
		}

		w.Header().Set(TraceIDHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
