package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/slotbook-backend/internal/guestsession"
)

// local storefront dev server
var defaultCORSOrigins = []string{"http://localhost:3000"}

// CORS lets the storefront send the guest session and Idempotency-Key
// headers, and read the session header back from draft responses.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type", "X-Requested-With",
			guestsession.HeaderName, IdempotencyHeader,
		},
		ExposedHeaders: []string{guestsession.HeaderName, "X-Request-Id", "Retry-After"},
		MaxAge:         300,
	})
}
