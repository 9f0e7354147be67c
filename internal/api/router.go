package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/biofleet/biofleet-core/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Control panel UI (embedded via go:embed)
	r.Handle("/panel/*", http.StripPrefix("/panel", panel.Handler()))
	r.Handle("/panel", http.RedirectHandler("/panel/", http.StatusMovedPermanently))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Device registry + per-terminal session endpoints
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Patch("/", s.handleUpdateDevice)
				r.Delete("/", s.handleDeleteDevice)

				r.Get("/info", s.handleDeviceInfo)

				r.Route("/users", func(r chi.Router) {
					r.Get("/", s.handleListDeviceUsers)
					r.Post("/", s.handleSetDeviceUser)
					r.Delete("/{uid}", s.handleDeleteDeviceUser)
				})

				r.Route("/attendance", func(r chi.Router) {
					r.Get("/", s.handleReadAttendance)
					r.Delete("/", s.handleClearAttendance)
				})
			})
		})

		// Aggregated user listing across the fleet
		r.Get("/users", s.handleListAllUsers)

		// Listener supervision
		r.Route("/listener", func(r chi.Router) {
			r.Get("/status", s.handleListenerStatus)
			r.Post("/start", s.handleListenerStart)
			r.Post("/stop", s.handleListenerStop)
			r.Post("/devices/{id}/stop", s.handleListenerStopDevice)
		})

		// Network discovery
		r.Post("/network/scan", s.handleNetworkScan)

		// Audit trail
		r.Get("/audit", s.handleListAudit)

		// WebSocket event stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
