// Package domain defines the core domain models for OnvifMesh.
package domain

import (
	"errors"
	"fmt"

	"github.com/yndnr/onvifmesh-go/internal/onvif"
)

// DomainError represents a domain error with a structured error code.
// Codes have the form OM-<AREA>-<status><seq>, where status is the HTTP
// status the API answers with.
type DomainError struct {
	Code    string // Error code (e.g., "OM-FLEET-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true // Only check if it's a DomainError
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// FromProtocol maps an error returned by a protocol collaborator to its
// domain error. It returns nil for a nil error.
func FromProtocol(err error) error {
	switch {
	case err == nil:
		return nil
	case IsDomainError(err, ""):
		return err
	case errors.Is(err, onvif.ErrInvalidURL):
		return ErrInvalidEndpoint.WithCause(err)
	case errors.Is(err, onvif.ErrNotAuthorized):
		return ErrAuthorizationRequired.WithCause(err)
	case errors.Is(err, onvif.ErrSOAP):
		return ErrProtocolFailure.WithDetails("soap").WithCause(err)
	default:
		return ErrProtocolFailure.WithDetails("connection").WithCause(err)
	}
}

// ============================================================================
// Fleet Errors (FLEET)
// ============================================================================

var (
	// ErrInvalidated indicates the device left the fleet while a step was
	// pending or running against it.
	ErrInvalidated = NewDomainError("OM-FLEET-4090", "device invalidated")

	// ErrDeviceNotFound indicates the requested device is not in the fleet.
	ErrDeviceNotFound = NewDomainError("OM-FLEET-4040", "device not found")

	// ErrDeviceExists indicates a device with the same endpoint is registered.
	ErrDeviceExists = NewDomainError("OM-FLEET-4091", "device already registered")

	// ErrProfileOutOfRange indicates a profile index the device does not have.
	ErrProfileOutOfRange = NewDomainError("OM-FLEET-4001", "profile index out of range")

	// ErrNoThumbnail indicates the device row holds no snapshot image.
	ErrNoThumbnail = NewDomainError("OM-FLEET-4041", "no thumbnail available")
)

// ============================================================================
// Authorization Errors (AUTH)
// ============================================================================

var (
	// ErrAuthorizationRequired indicates the device rejected the credentials.
	ErrAuthorizationRequired = NewDomainError("OM-AUTH-4010", "device requires credentials")

	// ErrPromptNotFound indicates the credentials prompt was answered or
	// cancelled already.
	ErrPromptNotFound = NewDomainError("OM-AUTH-4040", "prompt not found")
)

// ============================================================================
// Protocol Errors (PROTO)
// ============================================================================

var (
	// ErrProtocolFailure indicates a transport or parsing failure reported by
	// the device protocol layer.
	ErrProtocolFailure = NewDomainError("OM-PROTO-5020", "device protocol failure")

	// ErrInvalidEndpoint indicates a malformed device service URL.
	ErrInvalidEndpoint = NewDomainError("OM-PROTO-4000", "invalid device endpoint")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("OM-SYS-5000", "internal server error")

	// ErrStorageError indicates a storage layer error.
	ErrStorageError = NewDomainError("OM-SYS-5001", "storage error")

	// ErrResourceExhausted indicates a work item could not be scheduled or
	// failed abnormally.
	ErrResourceExhausted = NewDomainError("OM-SYS-5030", "resource exhausted")

	// ErrShuttingDown indicates the service no longer accepts work.
	ErrShuttingDown = NewDomainError("OM-SYS-5031", "service shutting down")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("OM-SYS-4000", "bad request")

	// ErrUnauthorized indicates a missing or unknown admin token.
	ErrUnauthorized = NewDomainError("OM-SYS-4010", "invalid or missing admin token")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("OM-SYS-4290", "too many requests")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("OM-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("OM-ARG-1002", "missing required argument")
)
