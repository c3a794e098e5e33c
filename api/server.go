/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

SECURITY NOTE:
  No authentication middleware. All endpoints are public; auth is an
  explicit non-goal of this service.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/records", func(r chi.Router) {
			r.Get("/", h.ListRecords)
			r.Post("/", h.CreateRecord)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetRecord)
				r.Put("/", h.UpdateRecord)
				r.Delete("/", h.DeleteRecord)
				r.Get("/consumption", h.GetConsumption)

				r.Put("/advance", h.SetAdvance)
				r.Delete("/advance", h.DeleteAdvance)

				r.Route("/billings", func(r chi.Router) {
					r.Post("/", h.CreateBilling)
					r.Post("/batch", h.ProcessBatch)
					r.Put("/{entryID}", h.UpdateBilling)
					r.Delete("/{entryID}", h.DeleteBilling)
				})
			})
		})

		r.Get("/dashboard", h.Dashboard)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/advances", h.AdvancesReport)
			r.Get("/billings", h.BillingsReport)
		})

		r.Get("/options", h.GetOptions)
		r.Post("/reload", h.Reload)
	})

	return r
}
