package handler

import (
	"net/http"

	"github.com/yndnr/onvifmesh-go/internal/onvif"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
)

// handleListPrompts handles GET /api/v1/prompts.
func (h *Handler) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts := h.fleet.Prompts()
	if prompts == nil {
		prompts = []presenter.Prompt{}
	}
	h.writeJSON(w, r, http.StatusOK, ListPromptsResponse{Items: prompts, Total: len(prompts)})
}

// handleAnswerPrompt handles POST /api/v1/prompts/{id}/answer.
func (h *Handler) handleAnswerPrompt(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	creds := onvif.Credentials{Username: req.Username, Password: req.Password}
	if err := h.fleet.AnswerPrompt(r.Context(), r.PathValue("id"), creds); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusAccepted, AcceptedResponse{Status: "answered"})
}

// handleCancelPrompt handles POST /api/v1/prompts/{id}/cancel.
func (h *Handler) handleCancelPrompt(w http.ResponseWriter, r *http.Request) {
	if err := h.fleet.CancelPrompt(r.Context(), r.PathValue("id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, AcceptedResponse{Status: "cancelled"})
}
