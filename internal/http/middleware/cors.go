package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/promptroute/promptroute/internal/config"
)

// CORS builds the cross-origin policy for the browser-facing surfaces (key
// management and organization endpoints). A nil config disables the policy
// and requests pass through untouched.
func CORS(cfg *config.CORSConfig) Middleware {
	if cfg == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	policy := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
	return policy.Handler
}
