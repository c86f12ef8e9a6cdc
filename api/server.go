/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for embedding frontends

ROUTE GROUPS:
  /api/gatherings/*   Gathering lifecycle, roster, activity, settlement

SECURITY NOTE:
  No authentication middleware. A gathering ledger between friends has no
  user accounts; embedding hosts are expected to sit in front of this.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
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
		r.Route("/gatherings", func(r chi.Router) {
			r.Get("/", h.ListGatherings)
			r.Post("/", h.CreateGathering)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetGathering)
				r.Delete("/", h.DeleteGathering)
				r.Post("/close", h.CloseGathering)

				r.Post("/expenses", h.AddExpense)
				r.Post("/payments", h.RecordPayment)
				r.Get("/reimbursements", h.CalculateReimbursements)
				r.Get("/summary", h.GetSummary)

				r.Route("/members", func(r chi.Router) {
					r.Post("/", h.AddMember)
					r.Put("/{name}", h.RenameMember)
					r.Delete("/{name}", h.RemoveMember)
				})
			})
		})
	})

	return r
}
