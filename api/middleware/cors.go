package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}
	corsHeaders = []string{"Accept", "Content-Type", idempotencyHeader, requestIDHeader}
	// Content-Disposition carries the xlsx report filename.
	corsExposed = []string{requestIDHeader, replayHeader, "Content-Disposition"}
)

// CORS lets the farm dashboard origins call the API from a browser. An empty
// origin list disables cross-origin access entirely.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   corsHeaders,
		ExposedHeaders:   corsExposed,
		AllowCredentials: true,
		MaxAge:           300,
	})
}
