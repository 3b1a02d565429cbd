// Package api wires the SafeWalk HTTP routes and middleware.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/api/handler"
	"github.com/safewalk/safewalk/internal/api/middleware"
	"github.com/safewalk/safewalk/internal/emergency"
	"github.com/safewalk/safewalk/internal/incident"
	"github.com/safewalk/safewalk/internal/planner"
	"github.com/safewalk/safewalk/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger

	// Metrics is optional.
	Metrics  *middleware.Metrics
	Verifier middleware.TokenVerifier

	Planner   *planner.Planner
	Reports   *incident.Service
	Emergency *emergency.Service

	// Registry reports provider circuit states on /v1/ops/status (optional).
	Registry *resilience.Registry
	// Readiness lists the stores pinged by /v1/ops/ready, keyed by name.
	Readiness map[string]handler.Pinger

	RequireTLS bool
}

// NewRouter creates a chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.Readiness)
	routeHandler := handler.NewRouteHandler(cfg.Planner, cfg.Logger)
	reportHandler := handler.NewReportHandler(cfg.Reports, cfg.Logger)
	emergencyHandler := handler.NewEmergencyHandler(cfg.Emergency, cfg.Logger)

	requireAuth := middleware.Auth(cfg.Verifier)
	optionalAuth := middleware.OptionalAuth(cfg.Verifier)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(requireAuth).Get("/status", opsHandler.SystemStatus)
		})

		r.With(optionalAuth, middleware.RateLimitByUser(middleware.RouteRateLimit)).
			Post("/routes:safest", routeHandler.SafestRoute)

		r.Route("/reports", func(r chi.Router) {
			r.Use(optionalAuth)
			r.With(middleware.RateLimitByUser(middleware.ReportRateLimit)).Post("/", reportHandler.CreateReport)
			r.With(middleware.RateLimitByIP(middleware.StandardRateLimit)).Get("/", reportHandler.ListReports)
			r.With(middleware.RateLimitByIP(middleware.StandardRateLimit)).Get("/{reportId}", reportHandler.GetReport)
		})

		r.Route("/me", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))
			r.Get("/contacts", emergencyHandler.ListContacts)
			r.Put("/contacts", emergencyHandler.ReplaceContacts)
		})

		r.Route("/panic", func(r chi.Router) {
			r.Use(requireAuth)
			r.With(middleware.RateLimitByUser(middleware.PanicRateLimit)).Post("/", emergencyHandler.RaisePanic)
			r.With(middleware.RateLimitByUser(middleware.StandardRateLimit)).Get("/{alertId}", emergencyHandler.GetAlert)
		})
	})

	return r
}
