package handler

import (
	"net/http"
	"strconv"

	"github.com/yndnr/onvifmesh-go/internal/core/domain"
	"github.com/yndnr/onvifmesh-go/internal/onvif"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
)

// handleListDevices handles GET /api/v1/devices.
func (h *Handler) handleListDevices(w http.ResponseWriter, r *http.Request) {
	snap := h.fleet.Snapshot()
	rows := snap.Rows
	if rows == nil {
		rows = []presenter.Row{}
	}
	h.writeJSON(w, r, http.StatusOK, ListDevicesResponse{
		Items:   rows,
		Total:   len(rows),
		Version: snap.Version,
	})
}

// handleGetDevice handles GET /api/v1/devices/{id}.
func (h *Handler) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	row, err := h.fleet.Device(r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, row)
}

// handleThumbnail handles GET /api/v1/devices/{id}/thumbnail. It returns
// the raw image, or 404 while the row has none.
func (h *Handler) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	row, err := h.fleet.Device(r.PathValue("id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	th := row.Thumbnail
	if th.State != presenter.ThumbnailImage || len(th.Data) == 0 {
		h.handleServiceError(w, r, domain.ErrNoThumbnail.WithDetails(string(th.State)))
		return
	}

	ct := th.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(th.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(th.Data)
}

// handleAddDevice handles POST /api/v1/devices.
func (h *Handler) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var req AddDeviceRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.URL == "" {
		h.writeError(w, r, domain.ErrMissingArgument.Code, domain.ErrMissingArgument.Message, "url")
		return
	}

	endpoint, err := h.fleet.AddDevice(r.Context(), req.URL, onvif.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, AddDeviceResponse{Endpoint: endpoint})
}

// handleRemoveDevice handles DELETE /api/v1/devices/{id}.
func (h *Handler) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	if err := h.fleet.RemoveDevice(r.Context(), r.PathValue("id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, AcceptedResponse{Status: "removed"})
}

// handleSelectDevice handles POST /api/v1/devices/{id}/select.
func (h *Handler) handleSelectDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	promptID, err := h.fleet.SelectDevice(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, SelectDeviceResponse{DeviceID: id, PromptID: promptID})
}

// handleClearSelection handles POST /api/v1/selection/clear.
func (h *Handler) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	if err := h.fleet.ClearSelection(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, AcceptedResponse{Status: "cleared"})
}

// handleChangeProfile handles POST /api/v1/devices/{id}/profile.
func (h *Handler) handleChangeProfile(w http.ResponseWriter, r *http.Request) {
	var req ChangeProfileRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Index == nil {
		h.writeError(w, r, domain.ErrMissingArgument.Code, domain.ErrMissingArgument.Message, "index")
		return
	}

	if err := h.fleet.ChangeProfile(r.Context(), r.PathValue("id"), *req.Index); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, AcceptedResponse{Status: "accepted"})
}

// handleScan handles POST /api/v1/scan.
func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	if err := h.fleet.Scan(r.Context()); err != nil {
		if domain.IsDomainError(err, domain.ErrRateLimited.Code) {
			w.Header().Set("Retry-After", "5")
		}
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, AcceptedResponse{Status: "scanning"})
}
