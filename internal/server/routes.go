package server

import (
	"context"
	"net/http"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/contactd/contactd/internal/appid"
	"github.com/contactd/contactd/internal/core/dispatch"
	"github.com/contactd/contactd/internal/observability"
	"github.com/contactd/contactd/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	searcher, _ := dispatch.SearcherOf(s.opts.Dispatcher)

	s.router.Route("/api", func(r chi.Router) {
		if s.opts.Dispatcher != nil {
			r.Method(http.MethodPost, "/contact", handlers.NewContactHandler(s.opts.Limiter, s.opts.Dispatcher, handlers.ContactOptions{
				DispatchTimeout: s.cfg.Dispatch.Timeout,
				MaxBodyBytes:    s.cfg.Server.MaxBodyBytes,
			}))
		}
		r.Method(http.MethodGet, "/health", handlers.NewAPIHealthHandler(s.opts.StartedAt, searcher))
		if searcher != nil {
			r.Method(http.MethodGet, "/search", handlers.NewSearchHandler(searcher))
		}
	})

	if s.cfg.Health.Enabled {
		s.router.Get("/health", handlers.HealthHandler)
		s.router.Get("/health/live", handlers.LivenessHandler)
		s.router.Get("/health/ready", handlers.ReadinessHandler)
		s.router.Get("/health/startup", handlers.StartupHandler)
	}

	s.router.Get("/version", handlers.VersionHandler)

	if s.cfg.Metrics.Enabled {
		s.router.Get("/metrics", MetricsHandler)
	}

	s.registerAdminEndpoint()

	if s.cfg.IsProduction() && s.cfg.Static.Dir != "" {
		s.router.Get("/*", spaHandler(s.cfg.Static.Dir))
	}
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	identity, _ := appid.Get(context.Background())
	envPrefix := identity.Prefix()

	adminToken := os.Getenv(envPrefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + envPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10, // per minute
		RateBurst: 5,
		Manager:   nil,
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
