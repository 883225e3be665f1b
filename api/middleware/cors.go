package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
)

const corsMaxAge = 5 * time.Minute

// CORS allows browser clients from origins. Credentials are never allowed
// since callers authenticate with bearer tokens, not cookies.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, ReplayedHeader, "Retry-After"},
		MaxAge:         int(corsMaxAge.Seconds()),
	})
}
