package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"

	"github.com/localstall/stallmarket-backend/api/responses"
)

// CORS applies the configured origin allow-list. A "*" entry opens the API to
// any origin and turns credentials off, since browsers reject that pairing.
func CORS(origins []string) func(http.Handler) http.Handler {
	wildcard := slices.Contains(origins, "*")
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, responses.RequestIDHeader},
		ExposedHeaders:   []string{responses.RequestIDHeader, "Retry-After", "X-RateLimit-Remaining"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}).Handler
}
