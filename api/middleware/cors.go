package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/madebyloom/loomline-backend/pkg/config"
)

// CORS allows the storefront origin plus local development hosts. The
// browsing-context cookie requires credentialed requests.
func CORS(frontend config.FrontendConfig) func(http.Handler) http.Handler {
	origins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}
	if frontend.BaseURL != "" {
		origins = append(origins, frontend.BaseURL)
	}

	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
