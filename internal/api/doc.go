// Package api implements the HTTP REST API and WebSocket server for BioFleet Core.
//
// This package provides:
//   - REST endpoints for device CRUD, terminal user management, attendance
//     reads and clears, listener control, and network discovery
//   - WebSocket hub for real-time listener and attendance event broadcasts
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API server sits between operator interfaces (web admin, scripts) and
// the device registry + listener manager. Long-lived polling is owned by
// the listener manager; the API borrows ad-hoc sessions through
// Manager.WithSession so admin reads never race a polling task on the
// same terminal.
//
// # Graceful Degradation
//
// The server operates without the audit repository (writes are skipped)
// and without connected terminals (registry reads still work, session
// endpoints return errors per device).
//
// See docs/interfaces/api.md for the full API specification.
package api
