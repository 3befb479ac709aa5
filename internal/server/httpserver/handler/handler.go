package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/onvifmesh-go/internal/core/domain"
	"github.com/yndnr/onvifmesh-go/internal/onvif"
	"github.com/yndnr/onvifmesh-go/internal/player"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
	"github.com/yndnr/onvifmesh-go/internal/telemetry/logger"
	"github.com/yndnr/onvifmesh-go/pkg/workqueue"
)

// Fleet is the service surface the handlers drive.
type Fleet interface {
	Ready() error
	Snapshot() *presenter.Snapshot
	Device(id string) (presenter.Row, error)
	Prompts() []presenter.Prompt
	PoolStats() workqueue.Stats
	PlayerStatus() player.Status
	Subscribe(id string, buffer int) (<-chan presenter.Event, func())

	Scan(ctx context.Context) error
	AddDevice(ctx context.Context, rawURL string, creds onvif.Credentials) (string, error)
	RemoveDevice(ctx context.Context, id string) error
	SelectDevice(ctx context.Context, id string) (string, error)
	ClearSelection(ctx context.Context) error
	ChangeProfile(ctx context.Context, id string, index int) error
	AnswerPrompt(ctx context.Context, id string, creds onvif.Credentials) error
	CancelPrompt(ctx context.Context, id string) error
}

// Handler serves the /api/v1 routes and the health endpoints.
type Handler struct {
	fleet    Fleet
	logger   *slog.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	eventBuf int
	started  time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithEventBuffer sets the per-connection event buffer of /api/v1/events.
func WithEventBuffer(n int) Option {
	return func(h *Handler) {
		h.eventBuf = n
	}
}

// WithCheckOrigin replaces the websocket origin check.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = fn
	}
}

// New creates a Handler backed by fleet.
func New(fleet Fleet, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		fleet:    fleet,
		logger:   logger,
		mux:      http.NewServeMux(),
		eventBuf: 256,
		started:  time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(h)
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("GET /api/v1/devices", h.handleListDevices)
	h.mux.HandleFunc("POST /api/v1/devices", h.handleAddDevice)
	h.mux.HandleFunc("GET /api/v1/devices/{id}", h.handleGetDevice)
	h.mux.HandleFunc("DELETE /api/v1/devices/{id}", h.handleRemoveDevice)
	h.mux.HandleFunc("GET /api/v1/devices/{id}/thumbnail", h.handleThumbnail)
	h.mux.HandleFunc("POST /api/v1/devices/{id}/select", h.handleSelectDevice)
	h.mux.HandleFunc("POST /api/v1/devices/{id}/profile", h.handleChangeProfile)
	h.mux.HandleFunc("POST /api/v1/selection/clear", h.handleClearSelection)
	h.mux.HandleFunc("POST /api/v1/scan", h.handleScan)

	h.mux.HandleFunc("GET /api/v1/prompts", h.handleListPrompts)
	h.mux.HandleFunc("POST /api/v1/prompts/{id}/answer", h.handleAnswerPrompt)
	h.mux.HandleFunc("POST /api/v1/prompts/{id}/cancel", h.handleCancelPrompt)

	h.mux.HandleFunc("GET /api/v1/pool", h.handlePool)
	h.mux.HandleFunc("GET /api/v1/player", h.handlePlayer)
	h.mux.HandleFunc("GET /api/v1/version", h.handleVersion)
	h.mux.HandleFunc("GET /api/v1/events", h.handleEvents)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, code, message string, details any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(StatusFromCode(code))
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		h.writeError(w, r, de.Code, de.Message, de.Details)
		return
	}

	logger.L(r.Context()).Error("internal error", "error", err)
	h.writeError(w, r, domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.writeError(w, r, domain.ErrBadRequest.Code, "invalid request body", err.Error())
		return false
	}
	return true
}

// StatusFromCode maps an error code such as OM-FLEET-4040 to its HTTP
// status. Argument errors map to 400; anything unrecognised to 500.
func StatusFromCode(code string) int {
	parts := strings.Split(code, "-")
	if len(parts) == 3 {
		if parts[1] == "ARG" {
			return http.StatusBadRequest
		}
		if len(parts[2]) == 4 {
			if status, err := strconv.Atoi(parts[2][:3]); err == nil && status >= 400 && status < 600 {
				return status
			}
		}
	}
	return http.StatusInternalServerError
}
