// Package http implements the HTTP transport: request binding, routing and
// the success/error envelope rendering over the service layer.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "licensegate/internal/errors"
	"licensegate/internal/infrastructure"
	"licensegate/internal/license"
)

// ValidateHandler serves the plugin-facing validation endpoint.
type ValidateHandler struct {
	evaluator *license.Evaluator
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *infrastructure.ValidationMetrics
}

// NewValidateHandler creates the handler. Tracer and metrics may be nil in
// tests.
func NewValidateHandler(eval *license.Evaluator, logger *slog.Logger, tracer trace.Tracer, metrics *infrastructure.ValidationMetrics) *ValidateHandler {
	return &ValidateHandler{
		evaluator: eval,
		logger:    logger.With(slog.String("handler", "validate")),
		tracer:    tracer,
		metrics:   metrics,
	}
}

// Routes returns the router for the validation endpoint.
func (h *ValidateHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Validate)
	return r
}

// ValidateRequest is the wire request of POST /api/validate. Field names
// are part of the plugin protocol and must stay snake_case.
type ValidateRequest struct {
	LicenseKey    string `json:"license_key" validate:"required"`
	ServerIP      string `json:"server_ip"`
	ServerPort    string `json:"server_port"`
	ServerName    string `json:"server_name"`
	PluginVersion string `json:"plugin_version"`
	MotherboardID string `json:"motherboard_id"`
}

// Bind validates the request after decoding.
func (req *ValidateRequest) Bind(r *http.Request) error {
	return validateStruct(req)
}

// ValidateResponse is the success envelope of POST /api/validate.
type ValidateResponse struct {
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	LicenseType string   `json:"license_type"`
	Customer    string   `json:"customer"`
	Features    []string `json:"features"`
}

// Validate handles POST /api/validate.
func (h *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tracer != nil {
		var span trace.Span
		ctx, span = h.tracer.Start(ctx, "validate_license")
		defer span.End()
	}

	start := time.Now()

	req := &ValidateRequest{}
	if err := render.Bind(r, req); err != nil {
		h.metrics.RecordValidation(ctx, "bad_request", time.Since(start).Seconds())
		render.Render(w, r, apierrors.NewValidationError("Invalid request body"))
		return
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		span.SetAttributes(
			attribute.String("server.name", req.ServerName),
			attribute.String("plugin.version", req.PluginVersion),
		)
	}

	decision, err := h.evaluator.Validate(ctx, license.ValidationRequest{
		LicenseKey:      req.LicenseKey,
		ServerIP:        req.ServerIP,
		ServerPort:      req.ServerPort,
		ServerName:      req.ServerName,
		PluginVersion:   req.PluginVersion,
		Fingerprint:     req.MotherboardID,
		OperatingSystem: DetectOS(r.UserAgent()),
	})
	if err != nil {
		h.recordOutcome(ctx, err, time.Since(start).Seconds())
		resp := apierrors.MapError(err)
		if resp.HTTPStatus == http.StatusInternalServerError {
			h.logger.ErrorContext(ctx, "validation failed",
				slog.String("error", err.Error()))
		}
		render.Render(w, r, resp)
		return
	}

	h.metrics.RecordValidation(ctx, "success", time.Since(start).Seconds())
	render.JSON(w, r, &ValidateResponse{
		Status:      "success",
		Message:     "License verified successfully",
		LicenseType: string(decision.LicenseType),
		Customer:    decision.CustomerName,
		Features:    decision.Features,
	})
}

func (h *ValidateHandler) recordOutcome(ctx context.Context, err error, seconds float64) {
	outcome := "error"
	switch {
	case errors.Is(err, apierrors.ErrUnknownLicense):
		outcome = "unknown_license"
	case errors.Is(err, apierrors.ErrLicenseInactive):
		outcome = "inactive"
	case errors.Is(err, apierrors.ErrLicenseExpired):
		outcome = "expired"
	case errors.Is(err, apierrors.ErrDeviceLimitReached):
		outcome = "device_limit"
		if h.metrics != nil {
			h.metrics.DeviceRejections.Add(ctx, 1)
		}
	case errors.Is(err, apierrors.ErrDeviceDeactivated):
		outcome = "device_deactivated"
	}
	h.metrics.RecordValidation(ctx, outcome, seconds)
}
