// Package router sets up the HTTP routes and middleware chain for the
// taxonomy service's JSON API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"plume/internal/handlers"
	"plume/internal/middleware"
)

// New creates and returns the configured Chi router with all middleware
// and routes wired up.
func New(taxonomy *handlers.Taxonomy, limiter *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	// Global middleware — applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	r.Use(limiter.Middleware)

	// Health check.
	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		// Category tree.
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", taxonomy.Tree)
			r.Post("/", taxonomy.CreateRoot)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/children", taxonomy.Children)
				r.Get("/descendants", taxonomy.Descendants)
				r.Get("/descendant-ids", taxonomy.DescendantIDs)
				r.Get("/breadcrumb", taxonomy.Breadcrumb)
				r.Post("/children", taxonomy.CreateChild)
				r.Post("/move", taxonomy.Move)
				r.Put("/live", taxonomy.SetLive)
				r.Put("/name", taxonomy.Rename)
				r.Delete("/", taxonomy.Delete)
			})
		})

		// Flat classification.
		r.Route("/classifier-groups", func(r chi.Router) {
			r.Get("/", taxonomy.Groups)
			r.Post("/", taxonomy.CreateGroup)
			r.Delete("/{id}", taxonomy.DeleteGroup)
		})
		r.Route("/classifiers", func(r chi.Router) {
			r.Get("/", taxonomy.Classifiers)
			r.Post("/", taxonomy.CreateClassifier)
			r.Get("/popular", taxonomy.PopularClassifiers)
		})

		// Content-save validation entry point.
		r.Post("/validate-selections", taxonomy.ValidateSelections)

		// Cache administration.
		r.Post("/cache/flush", taxonomy.FlushCache)
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
