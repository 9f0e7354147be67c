package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/biofleet/biofleet-core/internal/audit"
	"github.com/biofleet/biofleet-core/internal/terminal"
)

// attendanceRecord is the API shape of one on-board punch event.
type attendanceRecord struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// handleReadAttendance returns the terminal's on-board attendance log
// without clearing it. The listener owns the read-relay-clear cycle;
// this endpoint is a non-destructive inspection tool.
func (s *Server) handleReadAttendance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var records []terminal.AttendanceRecord
	err := s.manager.WithSession(r.Context(), id, func(sess terminal.Session) error {
		var readErr error
		records, readErr = sess.Attendance(r.Context())
		return readErr
	})
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	out := make([]attendanceRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, attendanceRecord{UserID: rec.UserID, Timestamp: rec.Timestamp})
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": out, "count": len(out)})
}

// handleClearAttendance wipes the terminal's on-board attendance log.
//
// Records cleared here are gone: they were never relayed. The audit
// entry is the only trace, so the count is recorded there.
func (s *Server) handleClearAttendance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cleared int
	err := s.manager.WithSession(r.Context(), id, func(sess terminal.Session) error {
		records, readErr := sess.Attendance(r.Context())
		if readErr != nil {
			return readErr
		}
		cleared = len(records)
		return sess.ClearAttendance(r.Context())
	})
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	s.auditLog(r, audit.ActionClear, audit.EntityAttendance, id, map[string]any{
		"records": cleared,
	})

	writeJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}
