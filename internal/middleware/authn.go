package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/taskkez-be/internal/auth"
	"github.com/hongminglow/taskkez-be/internal/http/respond"
)

// Client-facing authentication failures.
const (
	MsgNoCredentials = "Authentication credentials were not provided."
	MsgInvalidToken  = "Invalid token."
	MsgInactiveUser  = "User inactive or deleted."
)

type claimsKey struct{}

// Authenticator verifies a raw bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*auth.Claims, error)
}

// RequireAuth rejects requests without a valid, unrevoked bearer token and
// stores the token claims in the request context.
func RequireAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				respond.Detail(w, http.StatusUnauthorized, MsgNoCredentials)
				return
			}
			claims, err := a.Authenticate(r.Context(), raw)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrInactiveUser):
				respond.Detail(w, http.StatusUnauthorized, MsgInactiveUser)
				return
			case errors.Is(err, auth.ErrInvalidToken):
				respond.Detail(w, http.StatusUnauthorized, MsgInvalidToken)
				return
			default:
				zap.L().Error("authenticate request", zap.Error(err))
				respond.Detail(w, http.StatusInternalServerError, "internal server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// ClaimsFrom returns the claims stored by RequireAuth.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

// WithClaims stores claims in ctx the way RequireAuth does.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	for _, scheme := range []string{"Bearer ", "Token ", "JWT "} {
		if len(h) > len(scheme) && strings.EqualFold(h[:len(scheme)], scheme) {
			return strings.TrimSpace(h[len(scheme):])
		}
	}
	return ""
}
