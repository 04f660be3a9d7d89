package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS answers preflight requests and echoes allowed origins. A comma-separated list
// allows credentials; "*" allows any origin without them; empty allows none.
func CORS(allowedOrigins string) func(http.Handler) http.Handler {
	var origins []string
	allowAll := false
	for _, origin := range strings.Split(allowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			allowAll = true
		}
		origins = append(origins, origin)
	}

	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", TraceIDHeader},
		ExposedHeaders:   []string{TraceIDHeader},
		AllowCredentials: !allowAll,
		MaxAge:           86400,
	}
	if allowAll {
		opts.AllowedOrigins = []string{"*"}
	}
	if len(origins) == 0 {
		// go-chi/cors treats an empty list as "allow all"
		opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	return cors.Handler(opts)
}
