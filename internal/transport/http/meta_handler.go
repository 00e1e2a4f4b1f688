package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"licensegate/pkg/contracts/domain"
)

// MetaHandler serves the unauthenticated informational endpoints: the tier
// catalog, the liveness probe and the health check.
type MetaHandler struct {
	startedAt time.Time
	version   string
	logger    *slog.Logger
}

// NewMetaHandler creates the handler.
func NewMetaHandler(version string, logger *slog.Logger) *MetaHandler {
	return &MetaHandler{
		startedAt: time.Now(),
		version:   version,
		logger:    logger.With(slog.String("handler", "meta")),
	}
}

// LicenseTypes handles GET /api/license-types.
func (h *MetaHandler) LicenseTypes(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":        "success",
		"license_types": domain.AllBenefits(),
	})
}

// Status handles GET /api/status, the plugin-facing liveness probe.
func (h *MetaHandler) Status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":    "success",
		"message":   "License server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Health handles GET /api/health with version and uptime details.
func (h *MetaHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":  "success",
		"healthy": true,
		"version": h.version,
		"uptime":  time.Since(h.startedAt).String(),
	})
}
