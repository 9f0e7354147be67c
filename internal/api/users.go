package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/biofleet/biofleet-core/internal/audit"
	"github.com/biofleet/biofleet-core/internal/device"
	"github.com/biofleet/biofleet-core/internal/terminal"
)

// writeSessionError maps errors from ad-hoc terminal sessions onto HTTP
// responses. Connectivity failures become 502 so callers can tell "the
// terminal is down" apart from "the request was wrong".
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, terminal.ErrUserNotFound):
		writeNotFound(w, "user not found on terminal")
	case errors.Is(err, terminal.ErrSignatureMismatch):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case terminal.IsConnectivity(err):
		writeUnreachable(w, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}

// handleListDeviceUsers returns the user records stored on one terminal.
func (s *Server) handleListDeviceUsers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var users []terminal.UserRecord
	err := s.manager.WithSession(r.Context(), id, func(sess terminal.Session) error {
		var listErr error
		users, listErr = sess.Users(r.Context())
		return listErr
	})
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

// deviceUsers is one device's slice of the aggregated user listing.
// Error carries the per-device failure; Users is nil in that case.
type deviceUsers struct {
	DeviceID string                `json:"deviceId"`
	Name     string                `json:"name"`
	Address  string                `json:"ip"`
	Users    []terminal.UserRecord `json:"users,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// handleListAllUsers returns user records from every enabled device.
//
// A terminal that cannot be reached contributes an error entry instead
// of failing the whole listing; the response is always 200.
func (s *Server) handleListAllUsers(w http.ResponseWriter, r *http.Request) {
	results := []deviceUsers{}

	for _, dev := range s.registry.List() {
		if !dev.Enabled {
			continue
		}

		entry := deviceUsers{
			DeviceID: dev.ID,
			Name:     dev.Name,
			Address:  dev.Address,
		}

		err := s.manager.WithSession(r.Context(), dev.ID, func(sess terminal.Session) error {
			users, listErr := sess.Users(r.Context())
			if listErr != nil {
				return listErr
			}
			entry.Users = users
			return nil
		})
		if err != nil {
			entry.Error = err.Error()
			s.logger.Warn("user listing failed for device",
				"device_id", dev.ID,
				"error", err,
			)
		}

		results = append(results, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": results, "count": len(results)})
}

// setUserRequest is the payload for POST /devices/{id}/users.
// UID is optional; when omitted (or zero) one is derived from the numeric
// UserID, falling back to max existing uid + 1.
type setUserRequest struct {
	UID       int    `json:"uid"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Privilege int    `json:"privilege"`
	Password  string `json:"password"`
	Card      uint64 `json:"card"`
}

// handleSetDeviceUser creates or overwrites a user record on one terminal.
func (s *Server) handleSetDeviceUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeBadRequest(w, "userId field is required")
		return
	}

	var rec terminal.UserRecord
	err := s.manager.WithSession(r.Context(), id, func(sess terminal.Session) error {
		existing, listErr := sess.Users(r.Context())
		if listErr != nil {
			return listErr
		}

		rec = terminal.UserRecord{
			UID:       terminal.PickUID(req.UID, req.UserID, existing),
			UserID:    req.UserID,
			Name:      req.Name,
			Privilege: req.Privilege,
			Password:  req.Password,
			Card:      req.Card,
		}
		return terminal.WriteUser(r.Context(), sess, rec)
	})
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	s.auditLog(r, audit.ActionCreate, audit.EntityUser, req.UserID, map[string]any{
		"deviceId": id,
		"uid":      rec.UID,
	})

	writeJSON(w, http.StatusCreated, rec)
}

// handleDeleteDeviceUser removes a user from one terminal.
//
// The path segment is tried as a uid first. When it is not numeric, or
// the direct delete reports no such uid, the terminal's user list is
// searched for a matching userId instead. Terminals re-number uids after
// deletions, so callers often only hold the stable userId.
func (s *Server) handleDeleteDeviceUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	key := chi.URLParam(r, "uid")

	var deleted int
	err := s.manager.WithSession(r.Context(), id, func(sess terminal.Session) error {
		if uid, convErr := strconv.Atoi(key); convErr == nil && uid > 0 {
			delErr := sess.DeleteUser(r.Context(), uid)
			if delErr == nil {
				deleted = uid
				return nil
			}
			if !errors.Is(delErr, terminal.ErrUserNotFound) {
				return delErr
			}
		}

		// Fallback: resolve the key as a userId.
		users, listErr := sess.Users(r.Context())
		if listErr != nil {
			return listErr
		}
		for _, u := range users {
			if u.UserID == key {
				deleted = u.UID
				return sess.DeleteUser(r.Context(), u.UID)
			}
		}
		return terminal.ErrUserNotFound
	})
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	s.auditLog(r, audit.ActionDelete, audit.EntityUser, key, map[string]any{
		"deviceId": id,
		"uid":      deleted,
	})

	w.WriteHeader(http.StatusNoContent)
}
