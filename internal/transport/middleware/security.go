package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
)

// SecureHeaders sets the standard hardening headers. HTTPS redirects are left to the
// ingress.
func SecureHeaders(isDevelopment bool) func(http.Handler) http.Handler {
	return secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		STSSeconds:            31536000,
		STSIncludeSubdomains:  true,
		IsDevelopment:         isDevelopment,
	}).Handler
}

// RateLimitByIP caps requests per client address.
func RateLimitByIP(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requests, window)
}

// RateLimitByUser caps requests per bearer token, falling back to the client address.
// It guards the PIN and OTP endpoints against guessing.
func RateLimitByUser(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if token := r.Header.Get("Authorization"); token != "" {
				return token, nil
			}
			return httprate.KeyByIP(r)
		}),
	)
}
