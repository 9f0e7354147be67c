package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/biofleet/biofleet-core/internal/audit"
)

// handleListenerStatus returns the aggregated supervision snapshot:
// whether the supervisor is running plus per-device task state.
func (s *Server) handleListenerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Status())
}

// handleListenerStart launches polling tasks for all enabled devices.
// Devices that already have a task keep it; the call is incremental.
// Tasks are parented on the server context, not the request context.
func (s *Server) handleListenerStart(w http.ResponseWriter, r *http.Request) {
	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	s.manager.StartAll(ctx)

	s.auditLog(r, audit.ActionStart, audit.EntityListener, "", nil)

	writeJSON(w, http.StatusOK, s.manager.Status())
}

// handleListenerStop stops all polling tasks and clears the status table.
func (s *Server) handleListenerStop(w http.ResponseWriter, r *http.Request) {
	s.manager.StopAll()

	s.auditLog(r, audit.ActionStop, audit.EntityListener, "", nil)

	writeJSON(w, http.StatusOK, s.manager.Status())
}

// handleListenerStopDevice stops the polling task for one device.
func (s *Server) handleListenerStopDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stopped := s.manager.StopDevice(id)
	if !stopped {
		writeNotFound(w, "no running task for device")
		return
	}

	s.auditLog(r, audit.ActionStop, audit.EntityListener, id, nil)

	writeJSON(w, http.StatusOK, map[string]any{"stopped": true})
}
