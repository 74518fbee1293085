/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request counters and latency
  5. CORS:       Cross-origin requests for the dispatch UI

ROUTE GROUPS:
  /api/drivers/*              Drivers
  /api/carriers/*             Carrier partnerships
  /api/carrier-orgs/*         Carrier organization cascade
  /api/loads/*                Loads, stops, assignment
  /api/legs/*                 Leg lifecycle and pay
  /api/rate-profiles/*        Rate profiles
  /api/profile-assignments/*  Profile assignments
  /api/payables/*             Manual payables
  /api/settlements/*          Settlement lifecycle
  /api/pay-plans/*            Pay plans
  /api/route-assignments/*    Route assignments
  /api/auto-assign/*          Auto-assign settings and sweep
  /api/audit                  Audit trail
  /api/scenarios/*            Demo scenarios
  /metrics                    Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/freight-engine/metrics"
)

// RouterOptions configures the router's outer surface.
type RouterOptions struct {
	AllowedOrigins []string
	MetricsEnabled bool
	MetricsPath    string
}

// DefaultRouterOptions is used by tests and when no config is supplied.
func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		MetricsEnabled: true,
		MetricsPath:    "/metrics",
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if opts.MetricsEnabled {
		r.Use(metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Org-ID", "X-User-ID", "X-User-Name"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	if opts.MetricsEnabled {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Driver routes
		r.Route("/drivers", func(r chi.Router) {
			r.Get("/", h.ListDrivers)
			r.Post("/", h.CreateDriver)
			r.Get("/available", h.GetAvailableDrivers)
			r.Get("/{id}", h.GetDriver)
			r.Post("/{id}/deactivate", h.DeactivateDriver)
		})

		// Carrier routes
		r.Route("/carriers", func(r chi.Router) {
			r.Get("/", h.ListCarriers)
			r.Post("/", h.CreateCarrier)
		})
		r.Post("/carrier-orgs/{id}/deactivate", h.DeactivateCarrierOrganization)

		// Load routes
		r.Route("/loads", func(r chi.Router) {
			r.Get("/", h.ListLoads)
			r.Post("/", h.CreateLoad)
			r.Get("/{id}", h.GetLoad)
			r.Post("/{id}/assign-driver", h.AssignDriver)
			r.Post("/{id}/assign-carrier", h.AssignCarrier)
			r.Post("/{id}/unassign", h.UnassignResource)
			r.Post("/{id}/split", h.SplitAtStop)
			r.Put("/{id}/revenue", h.UpdateRevenue)
			r.Get("/{id}/payables", h.ListLoadPayables)
			r.Put("/{id}/stops/{stopID}/check-in", h.CheckInStop)
			r.Put("/{id}/stops/{stopID}/check-out", h.CheckOutStop)
		})

		// Leg routes
		r.Route("/legs", func(r chi.Router) {
			r.Post("/{id}/status", h.TransitionLeg)
			r.Post("/{id}/remove-driver", h.RemoveDriver)
			r.Post("/{id}/recalculate", h.RecalculateLeg)
		})

		// Rate configuration routes
		r.Route("/rate-profiles", func(r chi.Router) {
			r.Get("/", h.ListRateProfiles)
			r.Post("/", h.CreateRateProfile)
			r.Get("/{id}", h.GetRateProfile)
			r.Post("/{id}/default", h.SetDefaultRateProfile)
		})
		r.Route("/profile-assignments", func(r chi.Router) {
			r.Get("/", h.ListProfileAssignments)
			r.Post("/", h.CreateProfileAssignment)
		})

		// Payable routes
		r.Route("/payables", func(r chi.Router) {
			r.Post("/", h.CreatePayable)
			r.Get("/unassigned", h.ListUnassignedPayables)
			r.Put("/{id}", h.UpdatePayable)
			r.Delete("/{id}", h.DeletePayable)
			r.Post("/{id}/lock", h.LockPayable)
			r.Post("/{id}/unlock", h.UnlockPayable)
		})

		// Settlement routes
		r.Route("/settlements", func(r chi.Router) {
			r.Get("/", h.ListSettlements)
			r.Post("/generate", h.GenerateSettlement)
			r.Post("/bulk/approve", h.BulkApprove)
			r.Post("/bulk/void", h.BulkVoid)
			r.Post("/bulk/delete", h.BulkDelete)
			r.Get("/{id}", h.GetSettlement)
			r.Delete("/{id}", h.DeleteSettlement)
			r.Get("/{id}/statement.xlsx", h.ExportStatement)
			r.Post("/{id}/refresh", h.RefreshSettlement)
			r.Post("/{id}/hold", h.HoldLoad)
			r.Post("/{id}/release", h.ReleaseLoad)
			r.Post("/{id}/submit", h.SubmitSettlement)
			r.Post("/{id}/approve", h.ApproveSettlement)
			r.Post("/{id}/pay", h.PaySettlement)
			r.Post("/{id}/void", h.VoidSettlement)
			r.Post("/{id}/adjustments", h.AddAdjustment)
			r.Put("/{id}/adjustments/{payableID}", h.UpdateAdjustment)
			r.Delete("/{id}/adjustments/{payableID}", h.DeleteAdjustment)
		})

		// Pay plan routes
		r.Route("/pay-plans", func(r chi.Router) {
			r.Get("/", h.ListPayPlans)
			r.Post("/", h.CreatePayPlan)
		})

		// Auto-assignment routes
		r.Route("/route-assignments", func(r chi.Router) {
			r.Get("/", h.ListRouteAssignments)
			r.Post("/", h.SaveRouteAssignment)
		})
		r.Route("/auto-assign", func(r chi.Router) {
			r.Get("/settings", h.GetAutoAssignSettings)
			r.Put("/settings", h.SaveAutoAssignSettings)
			r.Post("/run", h.RunAutoAssign)
		})

		r.Get("/audit", h.ListAudit)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
