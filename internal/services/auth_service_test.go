package services

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensegate/internal/auth"
	apierrors "licensegate/internal/errors"
	"licensegate/internal/store"
)

func newTestAuthService(t *testing.T) AuthService {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "licenses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthService(st, tokens, logger, 5, 8)
}

func TestAuthServiceRegister(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{name: "valid credentials", username: "admin", password: "hunter22"},
		{name: "username too short", username: "bob", password: "hunter22", wantErr: true},
		{name: "password too short", username: "admin", password: "short", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestAuthService(t)
			account, err := svc.Register(context.Background(), tt.username, tt.password)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.username, account.Username)
		})
	}

	t.Run("first account is admin, second is not", func(t *testing.T) {
		svc := newTestAuthService(t)

		first, err := svc.Register(context.Background(), "alice", "password1")
		require.NoError(t, err)
		assert.True(t, first.IsAdmin)

		second, err := svc.Register(context.Background(), "bobby", "password2")
		require.NoError(t, err)
		assert.False(t, second.IsAdmin)
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		svc := newTestAuthService(t)

		_, err := svc.Register(context.Background(), "alice", "password1")
		require.NoError(t, err)

		_, err = svc.Register(context.Background(), "alice", "password2")
		assert.ErrorIs(t, err, apierrors.ErrDuplicateUsername)
	})
}

func TestAuthServiceLogin(t *testing.T) {
	svc := newTestAuthService(t)
	_, err := svc.Register(context.Background(), "alice", "password1")
	require.NoError(t, err)

	t.Run("valid credentials issue a token", func(t *testing.T) {
		result, err := svc.Login(context.Background(), "alice", "password1")
		require.NoError(t, err)
		assert.NotEmpty(t, result.Token)
		assert.Equal(t, "alice", result.Account.Username)
		assert.True(t, result.Account.IsAdmin)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(context.Background(), "alice", "wrong")
		assert.ErrorIs(t, err, apierrors.ErrInvalidCredentials)
	})

	t.Run("unknown username maps to the same error", func(t *testing.T) {
		_, err := svc.Login(context.Background(), "nobody", "password1")
		assert.ErrorIs(t, err, apierrors.ErrInvalidCredentials)
	})
}

func TestAuthServiceVerifyToken(t *testing.T) {
	svc := newTestAuthService(t)
	_, err := svc.Register(context.Background(), "alice", "password1")
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), "alice", "password1")
	require.NoError(t, err)

	t.Run("valid token resolves the account", func(t *testing.T) {
		account, err := svc.VerifyToken(context.Background(), result.Token)
		require.NoError(t, err)
		assert.Equal(t, "alice", account.Username)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		_, err := svc.VerifyToken(context.Background(), "not.a.token")
		assert.ErrorIs(t, err, apierrors.ErrUnauthorized)
	})

	t.Run("token signed with a different secret rejected", func(t *testing.T) {
		other := auth.NewTokenManager("other-secret", time.Hour)
		forged, err := other.GenerateToken("alice")
		require.NoError(t, err)

		_, err = svc.VerifyToken(context.Background(), forged)
		assert.ErrorIs(t, err, apierrors.ErrUnauthorized)
	})
}

func TestAuthServiceUpdatePassword(t *testing.T) {
	t.Run("rotates password and issues a new token", func(t *testing.T) {
		svc := newTestAuthService(t)
		_, err := svc.Register(context.Background(), "alice", "password1")
		require.NoError(t, err)

		token, err := svc.UpdatePassword(context.Background(), "alice", "password1", "password2")
		require.NoError(t, err)
		assert.NotEmpty(t, token)

		_, err = svc.Login(context.Background(), "alice", "password1")
		assert.ErrorIs(t, err, apierrors.ErrInvalidCredentials)
		_, err = svc.Login(context.Background(), "alice", "password2")
		assert.NoError(t, err)
	})

	t.Run("wrong current password", func(t *testing.T) {
		svc := newTestAuthService(t)
		_, err := svc.Register(context.Background(), "alice", "password1")
		require.NoError(t, err)

		_, err = svc.UpdatePassword(context.Background(), "alice", "wrong", "password2")
		assert.ErrorIs(t, err, apierrors.ErrInvalidCredentials)
	})

	t.Run("empty new password is a no-op", func(t *testing.T) {
		svc := newTestAuthService(t)
		_, err := svc.Register(context.Background(), "alice", "password1")
		require.NoError(t, err)

		token, err := svc.UpdatePassword(context.Background(), "alice", "password1", "")
		require.NoError(t, err)
		assert.Empty(t, token)

		_, err = svc.Login(context.Background(), "alice", "password1")
		assert.NoError(t, err)
	})
}

func TestAuthServiceAdminExists(t *testing.T) {
	svc := newTestAuthService(t)

	exists, err := svc.AdminExists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = svc.Register(context.Background(), "alice", "password1")
	require.NoError(t, err)

	exists, err = svc.AdminExists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)
}
