package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	// Tills send the terminal id and idempotency key on writes and resume
	// streams with Last-Event-ID.
	corsAllowedHeaders = []string{
		"Accept", "Authorization", "Content-Type",
		idempotencyHeader, requestIDHeader, terminalIDHeader, "Last-Event-ID",
	}
	corsExposedHeaders = []string{requestIDHeader, replayedHeader, "Retry-After"}
)

// CORS admits the configured POS front-end origins. A "*" entry opens the API
// to any origin but then credentials are not allowed.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	wildcard := false
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if origin == "*" {
			wildcard = true
		}
		allowed = append(allowed, origin)
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   corsAllowedHeaders,
		ExposedHeaders:   corsExposedHeaders,
		AllowCredentials: !wildcard,
		MaxAge:           600,
	})
}
