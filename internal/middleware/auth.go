package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	apierrors "licensegate/internal/errors"
	"licensegate/internal/services"
)

type accountKey struct{}

// AdminAuth authenticates the Bearer token against the auth service and
// requires the resolved account to hold the admin flag. A missing or bad
// token is 401, a valid token without admin rights is 403.
func AdminAuth(auth services.AuthService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				render.Render(w, r, apierrors.NewError(http.StatusUnauthorized, "Authentication required"))
				return
			}

			account, err := auth.VerifyToken(r.Context(), token)
			if err != nil {
				render.Render(w, r, apierrors.NewError(http.StatusUnauthorized, "Invalid or expired token"))
				return
			}
			if !account.IsAdmin {
				render.Render(w, r, apierrors.NewError(http.StatusForbidden, "Admin access required"))
				return
			}

			ctx := context.WithValue(r.Context(), accountKey{}, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountFromContext returns the authenticated account set by AdminAuth.
func AccountFromContext(ctx context.Context) (*services.AccountInfo, bool) {
	account, ok := ctx.Value(accountKey{}).(*services.AccountInfo)
	return account, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
