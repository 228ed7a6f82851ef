package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/http/handlers"
	httpmiddleware "github.com/Damatnic/ASTRAL-CORE-V2-sub004/internal/http/middleware"
	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger      *logging.Logger
	Sessions    *handlers.SessionHandler
	Escalations *handlers.EscalationHandler
	Monitoring  *handlers.MonitoringHandler

	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.Sessions.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/sessions", func(s chi.Router) {
		s.Post("/", cfg.Sessions.Create)
		s.Route("/{sessionID}", func(sess chi.Router) {
			sess.Get("/", cfg.Sessions.Get)
			sess.Post("/messages", cfg.Sessions.PostMessage)
			sess.Post("/responders", cfg.Sessions.AddResponder)
			sess.Post("/end", cfg.Sessions.End)
			sess.Post("/resolve", cfg.Sessions.Resolve)
			sess.Post("/transfer", cfg.Sessions.Transfer)
			sess.Post("/preserve", cfg.Sessions.Preserve)
			if cfg.Escalations != nil {
				sess.Post("/escalate", cfg.Escalations.Escalate)
				sess.Get("/escalation", cfg.Escalations.Active)
				sess.Post("/escalation/resolve", cfg.Escalations.Resolve)
			}
		})
	})

	if cfg.Monitoring != nil {
		r.Route("/monitoring", func(m chi.Router) {
			m.Get("/report", cfg.Monitoring.Report)
			m.Get("/alerts", cfg.Monitoring.Alerts)
			m.Post("/alerts/{alertID}/resolve", cfg.Monitoring.ResolveAlert)
			m.Get("/audit", cfg.Monitoring.AuditTrail)
		})
	}

	return r
}
