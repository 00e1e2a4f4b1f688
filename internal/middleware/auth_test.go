package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	apierrors "licensegate/internal/errors"
	"licensegate/internal/services"
)

type stubAuthService struct {
	account *services.AccountInfo
	err     error
}

func (s *stubAuthService) Register(ctx context.Context, username, password string) (*services.AccountInfo, error) {
	return nil, nil
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (*services.LoginResult, error) {
	return nil, nil
}

func (s *stubAuthService) VerifyToken(ctx context.Context, token string) (*services.AccountInfo, error) {
	return s.account, s.err
}

func (s *stubAuthService) UpdatePassword(ctx context.Context, username, currentPassword, newPassword string) (string, error) {
	return "", nil
}

func (s *stubAuthService) AdminExists(ctx context.Context) (bool, error) {
	return true, nil
}

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		account    *services.AccountInfo
		verifyErr  error
		wantStatus int
	}{
		{
			name:       "missing authorization header",
			header:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed authorization header",
			header:     "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid token",
			header:     "Bearer bad-token",
			verifyErr:  apierrors.ErrUnauthorized,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "valid token without admin flag",
			header:     "Bearer good-token",
			account:    &services.AccountInfo{Username: "viewer", IsAdmin: false},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "valid admin token",
			header:     "Bearer good-token",
			account:    &services.AccountInfo{Username: "alice", IsAdmin: true},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &stubAuthService{account: tt.account, err: tt.verifyErr}

			var gotAccount *services.AccountInfo
			h := AdminAuth(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAccount, _ = AccountFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/admin/licenses", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "alice", gotAccount.Username)
			} else {
				assert.Contains(t, rec.Body.String(), `"status":"error"`)
			}
		})
	}
}
