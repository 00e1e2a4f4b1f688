// Package errors defines the service's error taxonomy and the wire envelope
// used by every endpoint. Domain code returns sentinel errors; the HTTP layer
// maps them to structured {status:"error"} responses via MapError.
package errors

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
)

// Sentinel domain errors. Handlers and services wrap these with %w so the
// transport layer can classify failures with errors.Is.
var (
	// Validation flow
	ErrUnknownLicense     = errors.New("unknown license key")
	ErrLicenseInactive    = errors.New("license not active")
	ErrLicenseExpired     = errors.New("license expired")
	ErrDeviceLimitReached = errors.New("maximum device limit reached")
	ErrDeviceDeactivated  = errors.New("device has been deactivated")

	// Lifecycle and store
	ErrLicenseNotFound = errors.New("license not found")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrUserNotFound    = errors.New("user not found")

	// Access gate
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("admin privileges required")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrDuplicateUsername  = errors.New("username already exists")
)

// Machine-readable discriminators carried in the `error` field of rejection
// envelopes. Client plugins branch on these, so they are part of the wire
// contract.
const (
	CodeDeviceLimitReached = "device_limit_reached"
	CodeDeviceDeactivated  = "device_deactivated"
)

// Response is the envelope every endpoint renders. Success responses embed
// their payload next to Status; error responses carry Message and optionally
// a machine Code.
type Response struct {
	HTTPStatus int    `json:"-"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"error,omitempty"`
}

// Error implements the error interface so a Response can travel as an error.
func (e *Response) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render.
func (e *Response) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatus)
	return nil
}

// NewError creates an error envelope with the given HTTP status.
func NewError(httpStatus int, message string) *Response {
	return &Response{HTTPStatus: httpStatus, Status: "error", Message: message}
}

// NewErrorWithCode creates an error envelope carrying a machine code.
func NewErrorWithCode(httpStatus int, message, code string) *Response {
	return &Response{HTTPStatus: httpStatus, Status: "error", Message: message, Code: code}
}

// MapError maps a domain error to its wire envelope. Unknown errors become an
// opaque 500; the original error is expected to have been logged by the
// caller before mapping.
func MapError(err error) *Response {
	switch {
	case errors.Is(err, ErrUnknownLicense):
		return NewError(http.StatusNotFound, "Invalid license key")
	case errors.Is(err, ErrLicenseInactive):
		return NewError(http.StatusForbidden, "License not active")
	case errors.Is(err, ErrLicenseExpired):
		return NewError(http.StatusForbidden, "License expired")
	case errors.Is(err, ErrDeviceLimitReached):
		return NewErrorWithCode(http.StatusForbidden, "Maximum device limit reached", CodeDeviceLimitReached)
	case errors.Is(err, ErrDeviceDeactivated):
		return NewErrorWithCode(http.StatusForbidden, "Device has been deactivated", CodeDeviceDeactivated)
	case errors.Is(err, ErrLicenseNotFound):
		return NewError(http.StatusNotFound, "License not found")
	case errors.Is(err, ErrDeviceNotFound):
		return NewError(http.StatusNotFound, "Device not found")
	case errors.Is(err, ErrUserNotFound):
		return NewError(http.StatusNotFound, "User not found")
	case errors.Is(err, ErrUnauthorized):
		return NewError(http.StatusUnauthorized, "Authorization token missing or invalid")
	case errors.Is(err, ErrForbidden):
		return NewError(http.StatusForbidden, "Admin privileges required")
	case errors.Is(err, ErrInvalidCredentials):
		return NewError(http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, ErrDuplicateUsername):
		return NewError(http.StatusBadRequest, "Username already exists")
	default:
		return NewError(http.StatusInternalServerError, "Internal server error")
	}
}

// NewValidationError creates a 400 envelope for malformed input.
func NewValidationError(message string) *Response {
	return NewError(http.StatusBadRequest, message)
}
