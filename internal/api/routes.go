package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no owner scope)
	r.Get("/health", h.HealthCheck)

	r.Route("/api/owners/{ownerID}", func(r chi.Router) {
		// Inbound events
		r.Post("/events", h.HandleEvent)

		// Policies
		r.Route("/policies", func(r chi.Router) {
			r.Get("/", h.ListPolicies)
			r.Post("/", h.CreatePolicy)
			r.Get("/{id}", h.GetPolicy)
			r.Put("/{id}", h.UpdatePolicy)
			r.Delete("/{id}", h.DeletePolicy)
			r.Post("/{id}/enable", h.EnablePolicy)
			r.Post("/{id}/disable", h.DisablePolicy)
		})

		// Delayed action queue
		r.Route("/actions", func(r chi.Router) {
			r.Get("/", h.ListPendingActions)
			r.Post("/", h.EnqueueAction)
			r.Get("/stats", h.ActionStats)
			r.Get("/{id}", h.GetAction)
			r.Post("/{id}/cancel", h.CancelAction)
			r.Post("/{id}/expedite", h.ExpediteAction)
			r.Post("/{id}/retry", h.RetryAction)
		})

		// Emergency pause
		r.Route("/pause", func(r chi.Router) {
			r.Get("/", h.PauseState)
			r.Post("/", h.Pause)
			r.Delete("/", h.Resume)
			r.Get("/windows", h.ListPauseWindows)
			r.Post("/windows", h.AddPauseWindow)
			r.Delete("/windows/{id}", h.DeletePauseWindow)
		})

		// VIP contacts
		r.Route("/vips", func(r chi.Router) {
			r.Get("/", h.ListVIPs)
			r.Post("/", h.CreateVIP)
			r.Delete("/{id}", h.DeleteVIP)
		})

		// Audit trail
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/", h.QueryLedger)
			r.Get("/summary", h.LedgerSummary)
			r.Get("/export", h.ExportLedger)
			r.Post("/{id}/undo", h.MarkRecordUndone)
		})

		// Integration tier
		r.Get("/tier", h.GetTier)
		r.Put("/tier", h.SetTier)
	})

	return r
}
