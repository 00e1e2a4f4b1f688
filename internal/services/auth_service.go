// Package services holds the business logic behind the HTTP surface: admin
// account management and license lifecycle operations over the credential
// store.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"licensegate/internal/auth"
	apierrors "licensegate/internal/errors"
	"licensegate/internal/store"
	"licensegate/pkg/contracts/domain"
)

// AuthService manages admin accounts and their bearer tokens.
type AuthService interface {
	Register(ctx context.Context, username, password string) (*AccountInfo, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	VerifyToken(ctx context.Context, token string) (*AccountInfo, error)
	UpdatePassword(ctx context.Context, username, currentPassword, newPassword string) (string, error)
	AdminExists(ctx context.Context) (bool, error)
}

// AccountInfo is the public view of an admin account. Password hashes never
// leave the service layer.
type AccountInfo struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// LoginResult carries a freshly issued token and the account it belongs to.
type LoginResult struct {
	Token   string      `json:"token"`
	Account AccountInfo `json:"account"`
}

type authService struct {
	store             store.Store
	tokens            *auth.TokenManager
	logger            *slog.Logger
	minUsernameLength int
	minPasswordLength int
}

// NewAuthService creates the auth service. Minimum lengths come from
// configuration so tests can tighten or relax them.
func NewAuthService(st store.Store, tokens *auth.TokenManager, logger *slog.Logger, minUsername, minPassword int) AuthService {
	return &authService{
		store:             st,
		tokens:            tokens,
		logger:            logger.With(slog.String("component", "auth_service")),
		minUsernameLength: minUsername,
		minPasswordLength: minPassword,
	}
}

// Register creates a new admin account. The first account ever created is
// granted admin rights; the store makes that decision inside its insert
// transaction so two racing first registrations cannot both win.
func (s *authService) Register(ctx context.Context, username, password string) (*AccountInfo, error) {
	if len(username) < s.minUsernameLength {
		return nil, apierrors.NewValidationError(
			fmt.Sprintf("Username must be at least %d characters long", s.minUsernameLength))
	}
	if len(password) < s.minPasswordLength {
		return nil, apierrors.NewValidationError(
			fmt.Sprintf("Password must be at least %d characters long", s.minPasswordLength))
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.AdminUser{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "admin account created",
		slog.String("username", username),
		slog.Bool("is_admin", user.IsAdmin))
	return &AccountInfo{Username: user.Username, IsAdmin: user.IsAdmin}, nil
}

// Login checks credentials and issues a bearer token. Unknown usernames and
// wrong passwords are indistinguishable to the caller.
func (s *authService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.store.GetUser(username)
	if err != nil {
		if errors.Is(err, apierrors.ErrUserNotFound) {
			return nil, apierrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		s.logger.InfoContext(ctx, "login rejected: bad password",
			slog.String("username", username))
		return nil, apierrors.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.InfoContext(ctx, "login succeeded", slog.String("username", username))
	return &LoginResult{
		Token:   token,
		Account: AccountInfo{Username: user.Username, IsAdmin: user.IsAdmin},
	}, nil
}

// VerifyToken validates a bearer token and resolves the account behind it.
// A token whose account has been removed is rejected the same as a bad
// signature.
func (s *authService) VerifyToken(ctx context.Context, token string) (*AccountInfo, error) {
	claims, err := s.tokens.VerifyToken(token)
	if err != nil {
		return nil, apierrors.ErrUnauthorized
	}

	user, err := s.store.GetUser(claims.Username)
	if err != nil {
		if errors.Is(err, apierrors.ErrUserNotFound) {
			return nil, apierrors.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &AccountInfo{Username: user.Username, IsAdmin: user.IsAdmin}, nil
}

// UpdatePassword rotates an account password after checking the current one
// and returns a freshly issued token. An empty new password leaves the
// stored hash untouched and reports success with no token, so callers can
// use the operation as a credential check.
func (s *authService) UpdatePassword(ctx context.Context, username, currentPassword, newPassword string) (string, error) {
	user, err := s.store.GetUser(username)
	if err != nil {
		if errors.Is(err, apierrors.ErrUserNotFound) {
			return "", apierrors.ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to load user: %w", err)
	}

	if !auth.VerifyPassword(currentPassword, user.PasswordHash) {
		return "", apierrors.ErrInvalidCredentials
	}

	if newPassword == "" {
		return "", nil
	}
	if len(newPassword) < s.minPasswordLength {
		return "", apierrors.NewValidationError(
			fmt.Sprintf("Password must be at least %d characters long", s.minPasswordLength))
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash
	if err := s.store.UpdateUser(user); err != nil {
		return "", fmt.Errorf("failed to update user: %w", err)
	}

	token, err := s.tokens.GenerateToken(username)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.InfoContext(ctx, "password updated", slog.String("username", username))
	return token, nil
}

// AdminExists reports whether any admin account has been registered, used by
// setup flows to decide whether to show first-run registration.
func (s *authService) AdminExists(ctx context.Context) (bool, error) {
	n, err := s.store.CountAdmins()
	if err != nil {
		return false, fmt.Errorf("failed to count admins: %w", err)
	}
	return n > 0, nil
}
