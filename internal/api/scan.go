package api

import (
	"encoding/json"
	"net/http"

	"github.com/biofleet/biofleet-core/internal/audit"
)

// scanRequest is the payload for POST /network/scan.
type scanRequest struct {
	// Prefix is the first three octets of the subnet to sweep,
	// e.g. "192.168.1".
	Prefix string `json:"prefix"`
}

// handleNetworkScan sweeps a /24 subnet for terminals that answer the
// protocol handshake. The sweep is synchronous; a full subnet at the
// configured worker count completes within a few probe timeouts.
func (s *Server) handleNetworkScan(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeInternalError(w, "network scanning not configured")
		return
	}

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	results, err := s.scanner.Scan(r.Context(), req.Prefix)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	s.auditLog(r, audit.ActionScan, audit.EntityNetwork, req.Prefix, map[string]any{
		"found": len(results),
	})

	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}
