package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/taskkez-be/internal/accounts"
	"github.com/hongminglow/taskkez-be/internal/auth"
	"github.com/hongminglow/taskkez-be/internal/config"
	"github.com/hongminglow/taskkez-be/internal/ledger"
	"github.com/hongminglow/taskkez-be/internal/metrics"
	"github.com/hongminglow/taskkez-be/internal/notify"
	"github.com/hongminglow/taskkez-be/internal/profiles"
	"github.com/hongminglow/taskkez-be/internal/storage/memory"
	"github.com/hongminglow/taskkez-be/internal/verification"
)

func newTestRouter(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()
	store := memory.NewStore(true)
	l := ledger.NewMemoryLedger()
	m := metrics.New()
	acc := accounts.NewService(accounts.Deps{
		Store:    store,
		Hasher:   auth.NewBcryptHasher(bcrypt.MinCost),
		Sessions: auth.NewTokenManager("secret", "taskkez", time.Hour),
		Tokens:   verification.NewService("secret", "taskkez", time.Hour, time.Hour, l),
		Ledger:   l,
		Notifier: &notify.Recorder{},
		Metrics:  m,
	}, accounts.Policy{})
	prof := profiles.NewService(store, acc, nil, m, nil, profiles.Options{})
	return NewRouter(cfg, Deps{Accounts: acc, Profiles: prof, Metrics: m})
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	h := newTestRouter(t, config.Config{CORSOrigins: []string{"*"}, MaxUploadBytes: 1 << 20})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `route="/health"`)
}

func TestRouterThrottlesLogin(t *testing.T) {
	h := newTestRouter(t, config.Config{CORSOrigins: []string{"*"}, LoginRatePerMinute: 1})

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/login/", nil))
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/login/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRouterRequiresAuthForUser(t *testing.T) {
	h := newTestRouter(t, config.Config{CORSOrigins: []string{"*"}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
