package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"tle_zone_contest/internal/common"
	"tle_zone_contest/internal/common/security"
	"tle_zone_contest/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const (
	UserIDCtxKey   contextKey = "userID"
	UserRoleCtxKey contextKey = "userRole"
)

const WebhookSecretHeader = "X-Webhook-Secret"

// Authenticator rejects requests without a valid token. It expects
// jwtauth.Verifier to have run first.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := withIdentity(r.Context())
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth attaches the caller's identity when a valid token is present
// and lets anonymous requests through unchanged.
func OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ctx, err := withIdentity(r.Context()); err == nil {
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

type authError string

func (e authError) Error() string { return string(e) }

func withIdentity(ctx context.Context) (context.Context, error) {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		if errors.Is(err, jwtauth.ErrNoTokenFound) {
			return nil, authError("Authorization token required")
		}
		return nil, authError("Invalid token: " + err.Error())
	}
	if token == nil {
		return nil, authError("Invalid token")
	}

	userID, err := security.GetUserIDFromClaims(claims)
	if err != nil {
		return nil, authError("Invalid token claims: " + err.Error())
	}
	userRole, err := security.GetUserRoleFromClaims(claims)
	if err != nil {
		return nil, authError("Invalid token claims: " + err.Error())
	}

	ctx = context.WithValue(ctx, UserIDCtxKey, userID)
	ctx = context.WithValue(ctx, UserRoleCtxKey, userRole)
	return ctx, nil
}

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(UserRoleCtxKey).(string)
		if !ok || role != model.RoleAdmin {
			common.RespondWithError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WebhookSecret guards judge callbacks with a shared secret header. An empty
// secret refuses every request.
func WebhookSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(WebhookSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid webhook secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDCtxKey).(string)
	return userID, ok
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	userRole, ok := ctx.Value(UserRoleCtxKey).(string)
	return userRole, ok
}
