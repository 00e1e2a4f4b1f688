package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "licensegate/internal/errors"
	"licensegate/internal/services"
	"licensegate/pkg/contracts/domain"
)

// AdminHandler serves the license lifecycle endpoints. The whole subtree is
// mounted behind the admin auth middleware.
type AdminHandler struct {
	admin  services.AdminService
	logger *slog.Logger
}

// NewAdminHandler creates the handler.
func NewAdminHandler(admin services.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		logger: logger.With(slog.String("handler", "admin")),
	}
}

// Routes returns the router for the license administration endpoints.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListLicenses)
	r.Post("/", h.CreateLicense)
	r.Route("/{key}", func(r chi.Router) {
		r.Put("/", h.UpdateLicense)
		r.Get("/devices", h.ListDevices)
		r.Post("/devices/reset", h.ResetDevices)
		r.Route("/devices/{deviceId}", func(r chi.Router) {
			r.Put("/", h.SetDeviceActive)
			r.Delete("/", h.DeleteDevice)
		})
	})
	return r
}

// ListLicenses handles GET /api/admin/licenses. Licenses are keyed by their
// license key, and the tier catalog rides along so the panel can render cap
// and feature columns without a second request.
func (h *AdminHandler) ListLicenses(w http.ResponseWriter, r *http.Request) {
	overviews, err := h.admin.ListLicenses(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	licenses := make(map[string]*services.LicenseOverview, len(overviews))
	for _, ov := range overviews {
		licenses[ov.Key] = ov
	}

	render.JSON(w, r, map[string]any{
		"status":        "success",
		"licenses":      licenses,
		"license_types": domain.AllBenefits(),
	})
}

// CreateLicenseRequest is the body of POST /api/admin/licenses. Expiry is
// RFC 3339; an absent expiry makes the license perpetual.
type CreateLicenseRequest struct {
	CustomerName string   `json:"customer_name"`
	Type         string   `json:"type"`
	Expiry       string   `json:"expiry"`
	AllowedIPs   []string `json:"allowed_ips"`
}

// Bind validates the request after decoding.
func (req *CreateLicenseRequest) Bind(r *http.Request) error {
	if req.CustomerName == "" {
		req.CustomerName = "Unknown"
	}
	return nil
}

// CreateLicense handles POST /api/admin/licenses.
func (h *AdminHandler) CreateLicense(w http.ResponseWriter, r *http.Request) {
	req := &CreateLicenseRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apierrors.NewValidationError("Invalid request body"))
		return
	}

	licType, err := domain.ParseLicenseType(req.Type)
	if err != nil {
		render.Render(w, r, apierrors.NewValidationError("Unknown license type"))
		return
	}

	var expiry *time.Time
	if req.Expiry != "" {
		t, err := time.Parse(time.RFC3339, req.Expiry)
		if err != nil {
			render.Render(w, r, apierrors.NewValidationError("Expiry must be an RFC 3339 timestamp"))
			return
		}
		expiry = &t
	}

	lic, err := h.admin.CreateLicense(r.Context(), services.CreateLicenseParams{
		CustomerName: req.CustomerName,
		Type:         licType,
		Expiry:       expiry,
		AllowedIPs:   req.AllowedIPs,
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{
		"status":      "success",
		"license_key": lic.Key,
		"license":     lic,
		"benefits":    lic.Type.Benefits(),
	})
}

// UpdateLicenseRequest is the body of PUT /api/admin/licenses/{key}. Every
// field is optional; absent fields are left untouched. An empty expiry
// string clears the expiry, making the license perpetual.
type UpdateLicenseRequest struct {
	Active       *bool     `json:"active"`
	Expiry       *string   `json:"expiry"`
	AllowedIPs   *[]string `json:"allowed_ips"`
	CustomerName *string   `json:"customer_name"`
	Type         *string   `json:"type"`
}

// Bind implements render.Binder.
func (req *UpdateLicenseRequest) Bind(r *http.Request) error { return nil }

// UpdateLicense handles PUT /api/admin/licenses/{key}.
func (h *AdminHandler) UpdateLicense(w http.ResponseWriter, r *http.Request) {
	req := &UpdateLicenseRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apierrors.NewValidationError("Invalid request body"))
		return
	}

	update := domain.LicenseUpdate{
		Active:       req.Active,
		AllowedIPs:   req.AllowedIPs,
		CustomerName: req.CustomerName,
	}
	if req.Type != nil {
		licType, err := domain.ParseLicenseType(*req.Type)
		if err != nil {
			render.Render(w, r, apierrors.NewValidationError("Unknown license type"))
			return
		}
		update.Type = &licType
	}
	if req.Expiry != nil {
		if *req.Expiry == "" {
			update.ClearExpiry = true
		} else {
			t, err := time.Parse(time.RFC3339, *req.Expiry)
			if err != nil {
				render.Render(w, r, apierrors.NewValidationError("Expiry must be an RFC 3339 timestamp"))
				return
			}
			update.Expiry = &t
		}
	}

	ov, err := h.admin.UpdateLicense(r.Context(), chi.URLParam(r, "key"), update)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"status":   "success",
		"message":  "License updated",
		"license":  ov,
		"benefits": ov.Benefits,
	})
}

// ListDevices handles GET /api/admin/licenses/{key}/devices.
func (h *AdminHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	report, err := h.admin.ListDevices(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"status":        "success",
		"licenseKey":    report.LicenseKey,
		"devices":       report.Devices,
		"activeDevices": report.ActiveDevices,
		"totalDevices":  report.TotalDevices,
		"maxDevices":    report.MaxDevices,
	})
}

type setDeviceActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (req *setDeviceActiveRequest) Bind(r *http.Request) error {
	return validateStruct(req)
}

// SetDeviceActive handles PUT /api/admin/licenses/{key}/devices/{deviceId}.
func (h *AdminHandler) SetDeviceActive(w http.ResponseWriter, r *http.Request) {
	req := &setDeviceActiveRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apierrors.NewValidationError("Field active is required"))
		return
	}

	dev, err := h.admin.SetDeviceActive(r.Context(),
		chi.URLParam(r, "key"), chi.URLParam(r, "deviceId"), *req.Active)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	message := "Device disabled"
	if dev.Active {
		message = "Device enabled"
	}
	render.JSON(w, r, map[string]any{
		"status":  "success",
		"message": message,
		"device":  dev,
	})
}

// DeleteDevice handles DELETE /api/admin/licenses/{key}/devices/{deviceId}.
func (h *AdminHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	err := h.admin.DeleteDevice(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "deviceId"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"status":  "success",
		"message": "Device deleted",
	})
}

// ResetDevices handles POST /api/admin/licenses/{key}/devices/reset.
func (h *AdminHandler) ResetDevices(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.ResetDevices(r.Context(), chi.URLParam(r, "key")); err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"status":  "success",
		"message": "All devices reset",
	})
}

func (h *AdminHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var resp *apierrors.Response
	if errors.As(err, &resp) {
		render.Render(w, r, resp)
		return
	}
	mapped := apierrors.MapError(err)
	if mapped.HTTPStatus == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", slog.String("error", err.Error()))
	}
	render.Render(w, r, mapped)
}
