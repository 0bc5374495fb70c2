package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets browsers on origins call the API. A lone "*" allows any origin
// without credentials.
func CORS(origins []string) func(http.Handler) http.Handler {
	wildcard := len(origins) == 0 || (len(origins) == 1 && origins[0] == "*")
	if wildcard {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			IdempotencyKeyHeader,
			UserIDHeader,
			UserRoleHeader,
		},
		ExposedHeaders:   []string{"X-Request-Id", IdempotencyReplayHeader},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	})
}

// SecurityHeaders sets conservative browser hardening headers on every
// response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
