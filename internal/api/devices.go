package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/biofleet/biofleet-core/internal/audit"
	"github.com/biofleet/biofleet-core/internal/device"
	"github.com/biofleet/biofleet-core/internal/terminal"
)

// defaultDevicePort is the factory-default terminal port, used when a
// create request omits the port.
const defaultDevicePort = 4370

// handleListDevices returns all registered devices.
//
// Query parameters:
//   - enabled: "true" or "false" to filter by enabled flag
//   - status: filter by lifecycle status (unknown, online, offline, listening, error)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.registry.List()

	if v := r.URL.Query().Get("enabled"); v != "" {
		want := v == "true"
		filtered := devices[:0]
		for _, d := range devices {
			if d.Enabled == want {
				filtered = append(filtered, d)
			}
		}
		devices = filtered
	}

	if v := r.URL.Query().Get("status"); v != "" {
		filtered := devices[:0]
		for _, d := range devices {
			if d.Status == device.Status(v) {
				filtered = append(filtered, d)
			}
		}
		devices = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// createDeviceRequest is the payload for POST /devices.
type createDeviceRequest struct {
	Address string `json:"ip"`
	Port    int    `json:"port"`
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled"`
}

// handleCreateDevice registers a new device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Port == 0 {
		req.Port = defaultDevicePort
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	dev, err := s.registry.Add(req.Address, req.Port, req.Name, enabled)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	s.auditLog(r, audit.ActionCreate, audit.EntityDevice, dev.ID, map[string]any{
		"ip":   dev.Address,
		"port": dev.Port,
		"name": dev.Name,
	})

	writeJSON(w, http.StatusCreated, dev)
}

// updateDeviceRequest is the payload for PATCH /devices/{id}.
// Absent fields are left unchanged.
type updateDeviceRequest struct {
	Name    *string `json:"name"`
	Enabled *bool   `json:"enabled"`
	Address *string `json:"ip"`
	Port    *int    `json:"port"`
}

// handleUpdateDevice partially updates a device's configuration.
// Disabling a device also stops its listener task, if one is running.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev, err := s.registry.Update(id, device.Update{
		Name:    req.Name,
		Enabled: req.Enabled,
		Address: req.Address,
		Port:    req.Port,
	})
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeBadRequest(w, err.Error())
		return
	}

	if req.Enabled != nil && !*req.Enabled {
		s.manager.StopDevice(id)
	}

	s.auditLog(r, audit.ActionUpdate, audit.EntityDevice, id, nil)

	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a device from the registry.
// Any running listener task for the device is stopped first, so the task
// cannot write status for an entry that no longer exists.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.manager.StopDevice(id)

	if err := s.registry.Remove(id); err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	s.auditLog(r, audit.ActionDelete, audit.EntityDevice, id, nil)

	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceInfo connects to the terminal and returns live hardware
// metadata. The registry copy is refreshed as a side effect.
func (s *Server) handleDeviceInfo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var info device.Info
	err := s.manager.WithSession(r.Context(), id, func(sess terminal.Session) error {
		var infoErr error
		info, infoErr = sess.Info(r.Context())
		return infoErr
	})
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	s.registry.SetInfo(id, info)
	writeJSON(w, http.StatusOK, info)
}
