package handler

import (
	"net/http"

	"github.com/yndnr/onvifmesh-go/pkg/workqueue"
)

// handlePool handles GET /api/v1/pool.
func (h *Handler) handlePool(w http.ResponseWriter, r *http.Request) {
	st := h.fleet.PoolStats()
	label := workqueue.DispatchEvent{Running: st.Running, Pending: st.Pending, Workers: st.Workers}.Label()
	h.writeJSON(w, r, http.StatusOK, PoolResponse{
		Running:  st.Running,
		Pending:  st.Pending,
		Workers:  st.Workers,
		Executed: st.Executed,
		Panicked: st.Panicked,
		Dropped:  st.Dropped,
		Closed:   st.Closed,
		Label:    label,
	})
}

// handlePlayer handles GET /api/v1/player.
func (h *Handler) handlePlayer(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"player": h.fleet.PlayerStatus(),
		"view":   h.fleet.Snapshot().Player,
	})
}
