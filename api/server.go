/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Lightweight, context-based, RESTful route patterns.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. requestLogger: Structured request logging (zerolog)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/org-units/*       Org units, budgets, forecasts, actuals, summary
  /api/job-catalog/*     Role cost reference data
  /api/requisitions/*    Open headcount pipeline
  /api/offers/*          Offer lifecycle and impact previews
  /api/export, /api/import  CSV exchange
  /api/audit-logs        Audit trail
  /api/scenarios/*       Demo scenarios
  /api/reset             Database reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public; the
  X-Actor header is trusted as-is for the audit trail.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// requestLogger logs one line per request and stashes a request-scoped
// logger in the context.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := logger.With().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", middleware.GetReqID(r.Context())).
				Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(reqLogger.WithContext(r.Context())))

			reqLogger.Info().
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Org unit routes
		r.Route("/org-units", func(r chi.Router) {
			r.Get("/", h.ListOrgUnits)
			r.Post("/", h.CreateOrgUnit)
			r.Get("/{id}", h.GetOrgUnit)
			r.Patch("/{id}", h.UpdateOrgUnit)
			r.Get("/{id}/budgets", h.ListBudgets)
			r.Post("/{id}/budgets", h.UpsertBudget)
			r.Post("/{id}/lock-month", h.LockBudgetMonth)
			r.Get("/{id}/forecasts", h.ListForecasts)
			r.Post("/{id}/forecasts", h.UpsertForecast)
			r.Get("/{id}/actuals", h.ListActuals)
			r.Post("/{id}/actuals", h.UpsertActual)
			r.Get("/{id}/summary", h.GetSummary)
		})

		// Job catalog routes
		r.Route("/job-catalog", func(r chi.Router) {
			r.Get("/", h.ListJobCatalog)
			r.Post("/", h.CreateJobCatalog)
			r.Get("/{id}", h.GetJobCatalog)
			r.Patch("/{id}", h.UpdateJobCatalog)
			r.Delete("/{id}", h.DeleteJobCatalog)
		})

		// Requisition routes
		r.Route("/requisitions", func(r chi.Router) {
			r.Get("/", h.ListRequisitions)
			r.Post("/", h.CreateRequisition)
			r.Get("/{id}", h.GetRequisition)
			r.Patch("/{id}", h.UpdateRequisition)
			r.Post("/{id}/transition", h.TransitionRequisition)
		})

		// Offer routes
		r.Route("/offers", func(r chi.Router) {
			r.Get("/", h.ListOffers)
			r.Post("/", h.CreateOffer)
			r.Post("/preview-impact", h.PreviewOfferImpact)
			r.Post("/preview-new-positions", h.PreviewNewPositions)
			r.Get("/{id}", h.GetOffer)
			r.Patch("/{id}", h.UpdateOffer)
			r.Delete("/{id}", h.DeleteOffer)
			r.Post("/{id}/approve", h.ApproveOffer)
			r.Post("/{id}/send", h.SendOffer)
			r.Post("/{id}/hold", h.HoldOffer)
			r.Post("/{id}/accept", h.AcceptOffer)
			r.Post("/{id}/change-start-date", h.ChangeOfferStartDate)
		})

		// CSV exchange routes
		r.Route("/export", func(r chi.Router) {
			r.Get("/org-units", h.ExportOrgUnits)
			r.Get("/job-catalog", h.ExportJobCatalog)
			r.Get("/budgets/{id}", h.ExportBudgets)
			r.Get("/actuals/{id}", h.ExportActuals)
		})
		r.Route("/import", func(r chi.Router) {
			r.Post("/org-units", h.ImportOrgUnits)
			r.Post("/job-catalog", h.ImportJobCatalog)
			r.Post("/budgets", h.ImportBudgets)
			r.Post("/actuals", h.ImportActuals)
		})

		// Audit trail
		r.Get("/audit-logs", h.ListAuditLogs)

		// Demo scenarios
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		// Dev only
		r.Post("/reset", h.ResetDatabase)
	})

	return r
}
