package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/taskkez-be/internal/accounts"
	"github.com/hongminglow/taskkez-be/internal/auth"
	"github.com/hongminglow/taskkez-be/internal/blob"
	"github.com/hongminglow/taskkez-be/internal/ledger"
	"github.com/hongminglow/taskkez-be/internal/middleware"
	"github.com/hongminglow/taskkez-be/internal/notify"
	"github.com/hongminglow/taskkez-be/internal/profiles"
	"github.com/hongminglow/taskkez-be/internal/storage/memory"
	"github.com/hongminglow/taskkez-be/internal/verification"
)

type testAPI struct {
	srv   *httptest.Server
	store *memory.Store
	notes *notify.Recorder
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := zap.NewNop()
	store := memory.NewStore(true)
	l := ledger.NewMemoryLedger()
	notes := &notify.Recorder{}
	acc := accounts.NewService(accounts.Deps{
		Store:    store,
		Hasher:   auth.NewBcryptHasher(bcrypt.MinCost),
		Sessions: auth.NewTokenManager("test-secret", "taskkez", time.Hour),
		Tokens:   verification.NewService("test-secret", "taskkez", time.Hour, time.Hour, l),
		Ledger:   l,
		Notifier: notes,
		Logger:   log,
	}, accounts.Policy{UniqueEmail: true})
	blobs, err := blob.NewStore(t.TempDir(), 1<<20, 512, log)
	require.NoError(t, err)
	prof := profiles.NewService(store, acc, blobs, nil, log, profiles.Options{MediaURL: "/media/"})

	guards := Guards{Auth: middleware.RequireAuth(acc)}
	r := chi.NewRouter()
	NewHealthHandler(time.Now(), map[string]Check{"store": func(context.Context) error { return nil }}, log).Register(r)
	NewAuthHandler(acc, guards, log).Register(r)
	NewPasswordHandler(acc, guards, log).Register(r)
	NewUserHandler(prof, guards, "/media/", 0, log).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, store: store, notes: notes}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		require.FailNow(t, "decode response", err.Error())
	}
	return resp.StatusCode, out
}

func (a *testAPI) register(t *testing.T, username, email, phone string) string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/registration/", "", map[string]any{
		"username":     username,
		"email":        email,
		"password1":    "s3cure-pass",
		"password2":    "s3cure-pass",
		"first_name":   "Alice",
		"last_name":    "Smith",
		"phone_number": phone,
		"accept_terms": true,
	})
	require.Equal(t, http.StatusCreated, status, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegistrationAndProfileFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "alice", "alice@x.com", "01001234567")

	status, body := api.do(t, http.MethodGet, "/user/", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "+201001234567", body["phone_number"])
	assert.Equal(t, false, body["is_tasker"])
	assert.Equal(t, []any{}, body["address"])

	status, body = api.do(t, http.MethodPatch, "/user/", token, map[string]any{"is_tasker": true, "about": "hi"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["is_tasker"])
	assert.Equal(t, "hi", body["about"])
	assert.Equal(t, "+201001234567", body["phone_number"])
}

func TestProfileIDNumberFieldError(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "alice", "alice@x.com", "01001234567")

	status, body := api.do(t, http.MethodPatch, "/user/", token, map[string]any{"id_number": "12ab"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["id_number"])

	status, body = api.do(t, http.MethodPatch, "/user/", token, map[string]any{"id_number": 29001011234567})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "29001011234567", body["id_number"])
}

func TestRegistrationFieldErrors(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@x.com", "01001234567")

	status, body := api.do(t, http.MethodPost, "/registration/", "", map[string]any{
		"username":     "bob",
		"email":        "bob@x.com",
		"password1":    "s3cure-pass",
		"password2":    "s3cure-pass",
		"phone_number": "01001234567",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []any{accounts.MsgPhoneTaken}, body["phone_number"])
}

func TestMalformedJSON(t *testing.T) {
	api := newTestAPI(t)
	resp, err := http.Post(api.srv.URL+"/login/", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginAndLogout(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@x.com", "01001234567")

	status, body := api.do(t, http.MethodPost, "/login/", "", map[string]any{"username": "alice", "password": "wrong-pass"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, accounts.MsgWrongCredentials, body["detail"])

	status, body = api.do(t, http.MethodPost, "/login/", "", map[string]any{"username": "alice", "password": "s3cure-pass"})
	require.Equal(t, http.StatusOK, status)
	token := body["token"].(string)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])

	status, body = api.do(t, http.MethodPost, "/logout/", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Successfully logged out.", body["detail"])

	status, _ = api.do(t, http.MethodGet, "/user/", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestBannedUserTokenRejected(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "alice", "alice@x.com", "01001234567")

	ctx := context.Background()
	user, err := api.store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, api.store.UpdateUser(ctx, user))

	for _, path := range []string{"/user/", "/logout/", "/password/change/"} {
		method := http.MethodPost
		if path == "/user/" {
			method = http.MethodGet
		}
		status, body := api.do(t, method, path, token, map[string]any{})
		assert.Equal(t, http.StatusUnauthorized, status, path)
		assert.Equal(t, middleware.MsgInactiveUser, body["detail"], path)
	}
}

func TestUnauthenticatedUser(t *testing.T) {
	api := newTestAPI(t)
	status, body := api.do(t, http.MethodGet, "/user/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, middleware.MsgNoCredentials, body["detail"])
}

func TestConfirmEmailByPath(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@x.com", "01001234567")
	msg, ok := api.notes.Last(notify.KindEmailConfirmation)
	require.True(t, ok)

	status, body := api.do(t, http.MethodGet, "/account-confirm-email/"+msg.Key+"/", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["detail"])

	status, _ = api.do(t, http.MethodPost, "/registration/verify-email/", "", map[string]any{"key": msg.Key})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestResendUnknownEmail(t *testing.T) {
	api := newTestAPI(t)
	status, _ := api.do(t, http.MethodPost, "/registration/resend-email/", "", map[string]any{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPasswordResetFlow(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice", "alice@x.com", "01001234567")

	status, body := api.do(t, http.MethodPost, "/password/reset/", "", map[string]any{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusNotAcceptable, status)
	assert.Equal(t, "please enter correct email.", body["detail"])

	status, body = api.do(t, http.MethodPost, "/password/reset/", "", map[string]any{"email": "alice@x.com"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Password reset has been sent.", body["detail"])

	msg, ok := api.notes.Last(notify.KindPasswordReset)
	require.True(t, ok)
	path := "/password/reset/confirm/" + msg.UID + "/" + msg.Key + "/"
	payload := map[string]any{"new_password1": "n3w-password", "new_password2": "n3w-password"}

	status, body = api.do(t, http.MethodPost, path, "", payload)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Password has been reset with the new password.", body["detail"])

	status, _ = api.do(t, http.MethodPost, path, "", payload)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodPost, "/login/", "", map[string]any{"username": "alice", "password": "n3w-password"})
	assert.Equal(t, http.StatusOK, status)
}

func TestPasswordChange(t *testing.T) {
	api := newTestAPI(t)
	token := api.register(t, "alice", "alice@x.com", "01001234567")

	status, _ := api.do(t, http.MethodPost, "/password/change/", token, map[string]any{
		"old_password":  "wrong-pass",
		"new_password1": "n3w-password",
		"new_password2": "n3w-password",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := api.do(t, http.MethodPost, "/password/change/", token, map[string]any{
		"old_password":  "s3cure-pass",
		"new_password1": "n3w-password",
		"new_password2": "n3w-password",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "New password has been Changed.", body["detail"])
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	status, body := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "up", body["store"])
}
