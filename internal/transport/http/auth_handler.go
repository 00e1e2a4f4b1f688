package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "licensegate/internal/errors"
	"licensegate/internal/services"
)

// AuthHandler serves the admin account endpoints: registration, login,
// token verification and password rotation. None of these sit behind the
// admin middleware; update-password carries its own bearer check so a
// non-admin account can still rotate its password.
type AuthHandler struct {
	auth   services.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates the handler.
func NewAuthHandler(auth services.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger.With(slog.String("handler", "auth")),
	}
}

// Routes returns the router for the account endpoints.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Post("/register", h.Register)
	r.Post("/verify-token", h.VerifyToken)
	r.Post("/update-password", h.UpdatePassword)
	r.Get("/check-exists", h.CheckExists)
	return r
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (req *credentialsRequest) Bind(r *http.Request) error {
	return validateStruct(req)
}

// Login handles POST /api/admin/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req := &credentialsRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apierrors.NewValidationError("Username and password are required"))
		return
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"status":   "success",
		"message":  "Login successful",
		"token":    result.Token,
		"username": result.Account.Username,
	})
}

// Register handles POST /api/admin/register. The first account registered
// becomes the admin.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req := &credentialsRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apierrors.NewValidationError("Username and password are required"))
		return
	}

	account, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{
		"status":   "success",
		"message":  "Registration successful",
		"is_admin": account.IsAdmin,
	})
}

type verifyTokenRequest struct {
	Token    string `json:"token" validate:"required"`
	Username string `json:"username"`
}

func (req *verifyTokenRequest) Bind(r *http.Request) error {
	return validateStruct(req)
}

// VerifyToken handles POST /api/admin/verify-token. The token must resolve
// to the username supplied alongside it.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	req := &verifyTokenRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apierrors.NewValidationError("Token is required"))
		return
	}

	account, err := h.auth.VerifyToken(r.Context(), req.Token)
	if err != nil || account.Username != req.Username {
		render.Render(w, r, apierrors.NewError(http.StatusUnauthorized, "Invalid token"))
		return
	}

	render.JSON(w, r, map[string]any{
		"status":  "success",
		"message": "Token valid",
	})
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"`
}

func (req *updatePasswordRequest) Bind(r *http.Request) error {
	return validateStruct(req)
}

// UpdatePassword handles POST /api/admin/update-password. The account is
// taken from the bearer token, never from the body.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	token := bearerFromHeader(r.Header.Get("Authorization"))
	if token == "" {
		render.Render(w, r, apierrors.NewError(http.StatusUnauthorized, "Authorization token missing"))
		return
	}

	account, err := h.auth.VerifyToken(r.Context(), token)
	if err != nil {
		render.Render(w, r, apierrors.NewError(http.StatusUnauthorized, "Invalid or expired token"))
		return
	}

	req := &updatePasswordRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apierrors.NewValidationError("Current password is required"))
		return
	}

	newToken, err := h.auth.UpdatePassword(r.Context(), account.Username, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if newToken == "" {
		render.JSON(w, r, map[string]any{
			"status":  "success",
			"message": "No password change",
		})
		return
	}
	render.JSON(w, r, map[string]any{
		"status":  "success",
		"message": "Password updated successfully",
		"token":   newToken,
	})
}

// CheckExists handles GET /api/admin/check-exists, used by the panel to
// decide whether to show first-run registration.
func (h *AuthHandler) CheckExists(w http.ResponseWriter, r *http.Request) {
	exists, err := h.auth.AdminExists(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"status": "success",
		"exists": exists,
	})
}

func (h *AuthHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
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

func bearerFromHeader(h string) string {
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
