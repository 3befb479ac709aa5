package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/onvifmesh-go/internal/infra/buildinfo"
)

// handleHealth handles GET /health. It answers as long as the process
// serves HTTP.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status: "healthy",
		Time:   now.Format(time.RFC3339),
		Uptime: now.Sub(h.started).Truncate(time.Second).String(),
	})
}

// handleReady handles GET /ready. The fleet stops being ready once
// shutdown begins.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.fleet.Ready(); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	now := time.Now().UTC()
	resp := HealthResponse{
		Status: "ready",
		Time:   now.Format(time.RFC3339),
		Uptime: now.Sub(h.started).Truncate(time.Second).String(),
	}
	if snap := h.fleet.Snapshot(); snap != nil {
		resp.Devices = len(snap.Rows)
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleVersion handles GET /api/v1/version.
func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, buildinfo.Get())
}
