package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/taskkez-be/internal/auth"
)

type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(_ context.Context, raw string) (*auth.Claims, error) {
	switch raw {
	case "good":
	case "banned":
		return nil, auth.ErrInactiveUser
	case "broken":
		return nil, errors.New("redis down")
	default:
		return nil, auth.ErrInvalidToken
	}
	c := &auth.Claims{Username: "alice"}
	c.Subject = "1"
	return c, nil
}

func TestRequireAuth(t *testing.T) {
	var seen *auth.Claims
	h := RequireAuth(stubAuthenticator{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgNoCredentials)

	req := httptest.NewRequest(http.MethodGet, "/user/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("Authorization", "Bearer banned")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgInactiveUser)

	req.Header.Set("Authorization", "Bearer broken")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	req.Header.Set("Authorization", "bearer good")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "alice", seen.Username)
}

func TestMapLimiter(t *testing.T) {
	l := NewMapLimiter(2, time.Minute)
	now := time.Now()
	assert.True(t, l.Allow("1.2.3.4", now))
	assert.True(t, l.Allow("1.2.3.4", now))
	assert.False(t, l.Allow("1.2.3.4", now))
	assert.True(t, l.Allow("5.6.7.8", now))
	assert.True(t, l.Allow("1.2.3.4", now.Add(time.Minute)))

	var disabled *MapLimiter
	assert.True(t, disabled.Allow("x", now))
	assert.Nil(t, NewMapLimiter(0, 0))
}

func TestRateLimitResponds429(t *testing.T) {
	h := RateLimit(NewMapLimiter(1, time.Minute))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/login/", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/login/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
