package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "licensegate/internal/errors"
	"licensegate/internal/services"
)

type fakeAuthService struct {
	registerAccount *services.AccountInfo
	registerErr     error
	loginResult     *services.LoginResult
	loginErr        error
	verifyAccount   *services.AccountInfo
	verifyErr       error
	updateToken     string
	updateErr       error
	adminExists     bool
}

func (f *fakeAuthService) Register(ctx context.Context, username, password string) (*services.AccountInfo, error) {
	return f.registerAccount, f.registerErr
}

func (f *fakeAuthService) Login(ctx context.Context, username, password string) (*services.LoginResult, error) {
	return f.loginResult, f.loginErr
}

func (f *fakeAuthService) VerifyToken(ctx context.Context, token string) (*services.AccountInfo, error) {
	return f.verifyAccount, f.verifyErr
}

func (f *fakeAuthService) UpdatePassword(ctx context.Context, username, currentPassword, newPassword string) (string, error) {
	return f.updateToken, f.updateErr
}

func (f *fakeAuthService) AdminExists(ctx context.Context) (bool, error) {
	return f.adminExists, nil
}

func newAuthTestServer(t *testing.T, svc services.AuthService) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewAuthHandler(svc, logger).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body map[string]any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	buf, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(buf))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func TestAuthHandlerLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := newAuthTestServer(t, &fakeAuthService{
			loginResult: &services.LoginResult{
				Token:   "tok-123",
				Account: services.AccountInfo{Username: "alice", IsAdmin: true},
			},
		})

		resp, payload := postJSON(t, srv.URL+"/login",
			map[string]any{"username": "alice", "password": "password1"}, nil)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "success", payload["status"])
		assert.Equal(t, "tok-123", payload["token"])
		assert.Equal(t, "alice", payload["username"])
	})

	t.Run("bad credentials", func(t *testing.T) {
		srv := newAuthTestServer(t, &fakeAuthService{loginErr: apierrors.ErrInvalidCredentials})

		resp, payload := postJSON(t, srv.URL+"/login",
			map[string]any{"username": "alice", "password": "wrong"}, nil)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "error", payload["status"])
	})

	t.Run("missing fields", func(t *testing.T) {
		srv := newAuthTestServer(t, &fakeAuthService{})

		resp, _ := postJSON(t, srv.URL+"/login", map[string]any{"username": "alice"}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAuthHandlerRegister(t *testing.T) {
	t.Run("first account", func(t *testing.T) {
		srv := newAuthTestServer(t, &fakeAuthService{
			registerAccount: &services.AccountInfo{Username: "alice", IsAdmin: true},
		})

		resp, payload := postJSON(t, srv.URL+"/register",
			map[string]any{"username": "alice", "password": "password1"}, nil)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, true, payload["is_admin"])
	})

	t.Run("duplicate username", func(t *testing.T) {
		srv := newAuthTestServer(t, &fakeAuthService{registerErr: apierrors.ErrDuplicateUsername})

		resp, _ := postJSON(t, srv.URL+"/register",
			map[string]any{"username": "alice", "password": "password1"}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAuthHandlerVerifyToken(t *testing.T) {
	t.Run("valid token for matching username", func(t *testing.T) {
		srv := newAuthTestServer(t, &fakeAuthService{
			verifyAccount: &services.AccountInfo{Username: "alice", IsAdmin: true},
		})

		resp, payload := postJSON(t, srv.URL+"/verify-token",
			map[string]any{"token": "tok-123", "username": "alice"}, nil)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "success", payload["status"])
	})

	t.Run("username mismatch", func(t *testing.T) {
		srv := newAuthTestServer(t, &fakeAuthService{
			verifyAccount: &services.AccountInfo{Username: "alice", IsAdmin: true},
		})

		resp, _ := postJSON(t, srv.URL+"/verify-token",
			map[string]any{"token": "tok-123", "username": "mallory"}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token", func(t *testing.T) {
		srv := newAuthTestServer(t, &fakeAuthService{verifyErr: apierrors.ErrUnauthorized})

		resp, _ := postJSON(t, srv.URL+"/verify-token",
			map[string]any{"token": "bad", "username": "alice"}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAuthHandlerUpdatePassword(t *testing.T) {
	authHeader := map[string]string{"Authorization": "Bearer tok-123"}

	t.Run("password changed returns new token", func(t *testing.T) {
		srv := newAuthTestServer(t, &fakeAuthService{
			verifyAccount: &services.AccountInfo{Username: "alice"},
			updateToken:   "tok-456",
		})

		resp, payload := postJSON(t, srv.URL+"/update-password",
			map[string]any{"current_password": "password1", "new_password": "password2"}, authHeader)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "tok-456", payload["token"])
	})

	t.Run("empty new password reports no change", func(t *testing.T) {
		srv := newAuthTestServer(t, &fakeAuthService{
			verifyAccount: &services.AccountInfo{Username: "alice"},
		})

		resp, payload := postJSON(t, srv.URL+"/update-password",
			map[string]any{"current_password": "password1"}, authHeader)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "No password change", payload["message"])
		assert.NotContains(t, payload, "token")
	})

	t.Run("missing bearer token", func(t *testing.T) {
		srv := newAuthTestServer(t, &fakeAuthService{})

		resp, _ := postJSON(t, srv.URL+"/update-password",
			map[string]any{"current_password": "password1"}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong current password", func(t *testing.T) {
		srv := newAuthTestServer(t, &fakeAuthService{
			verifyAccount: &services.AccountInfo{Username: "alice"},
			updateErr:     apierrors.ErrInvalidCredentials,
		})

		resp, _ := postJSON(t, srv.URL+"/update-password",
			map[string]any{"current_password": "wrong", "new_password": "password2"}, authHeader)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAuthHandlerCheckExists(t *testing.T) {
	srv := newAuthTestServer(t, &fakeAuthService{adminExists: true})

	resp, err := http.Get(srv.URL + "/check-exists")
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["exists"])
}
