package handler

import (
	"time"

	"github.com/yndnr/onvifmesh-go/internal/presenter"
)

// Response is the standard API response envelope.
// All JSON responses use this format except /metrics and the thumbnail
// image.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	if s, ok := details.(string); ok && s == "" {
		details = nil
	}
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// CredentialsRequest carries device credentials. The password is accepted
// but never echoed back.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AddDeviceRequest is the request body for POST /api/v1/devices.
type AddDeviceRequest struct {
	URL string `json:"url"`
	CredentialsRequest
}

// AddDeviceResponse is the response body for POST /api/v1/devices.
type AddDeviceResponse struct {
	Endpoint string `json:"endpoint"`
}

// ListDevicesResponse is the response body for GET /api/v1/devices.
type ListDevicesResponse struct {
	Items   []presenter.Row `json:"items"`
	Total   int             `json:"total"`
	Version uint64          `json:"version"`
}

// SelectDeviceResponse is the response body for POST /api/v1/devices/{id}/select.
// PromptID is set when the device needs credentials before it can play.
type SelectDeviceResponse struct {
	DeviceID string `json:"device_id"`
	PromptID string `json:"prompt_id,omitempty"`
}

// ChangeProfileRequest is the request body for POST /api/v1/devices/{id}/profile.
type ChangeProfileRequest struct {
	Index *int `json:"index"`
}

// ListPromptsResponse is the response body for GET /api/v1/prompts.
type ListPromptsResponse struct {
	Items []presenter.Prompt `json:"items"`
	Total int                `json:"total"`
}

// PoolResponse is the response body for GET /api/v1/pool.
type PoolResponse struct {
	Running  int    `json:"running"`
	Pending  int    `json:"pending"`
	Workers  int    `json:"workers"`
	Executed uint64 `json:"executed"`
	Panicked uint64 `json:"panicked"`
	Dropped  uint64 `json:"dropped"`
	Closed   bool   `json:"closed"`
	Label    string `json:"label"`
}

// AcceptedResponse acknowledges a request whose work continues on the
// worker pool.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// StreamMessage is one frame on /api/v1/events.
type StreamMessage struct {
	Type     string              `json:"type"`
	Snapshot *presenter.Snapshot `json:"snapshot,omitempty"`
	Event    *presenter.Event    `json:"event,omitempty"`
}

// HealthResponse is the body of /health and /ready.
type HealthResponse struct {
	Status  string `json:"status"`
	Time    string `json:"time"`
	Uptime  string `json:"uptime"`
	Devices int    `json:"devices,omitempty"`
}
