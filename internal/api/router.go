package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-agents/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Operator console page (embedded HTML)
	r.Handle("/panel/*", http.StripPrefix("/panel", panel.Handler(s.cfg.PanelDir)))
	r.Handle("/panel", http.RedirectHandler("/panel/", http.StatusMovedPermanently))
	r.Handle("/", http.RedirectHandler("/panel/", http.StatusFound))

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Get("/state", s.handleGetState)
		r.Get("/agents", s.handleListAgents)
		r.Get("/bus", s.handleBusStats)
		r.Get("/journal", s.handleListJournal)
		r.Get("/ws", s.handleWebSocket)

		// Operator actions
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitMiddleware)

			r.Post("/presence/toggle", s.handleTogglePresence)
			r.Post("/night/toggle", s.handleToggleNight)
			r.Post("/temperature/adjust", s.handleAdjustTemperature)
			r.Post("/security/motion", s.handleSimulateMotion)
			r.Post("/security/reset", s.handleResetAlert)
			r.Post("/commands", s.handleSendCommand)
			r.Delete("/events", s.handleClearEvents)
		})
	})

	return r
}
