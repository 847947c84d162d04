package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/taskkez-be/internal/auth"
)

func envSource(env map[string]string) source {
	return source{
		file: map[string]string{},
		lookup: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(envSource(map[string]string{
		"DATABASE_URL": "postgres://localhost/taskkez",
		"JWT_SECRET":   "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, auth.MethodUsernameEmail, cfg.AuthMethod)
	assert.Equal(t, auth.VerificationOptional, cfg.EmailVerification)
	assert.True(t, cfg.UniqueEmail)
	assert.Equal(t, 72*time.Hour, cfg.EmailConfirmTTL)
	assert.Equal(t, 14, cfg.IDNumberMaxLength)
	assert.Equal(t, "EG", cfg.DefaultPhoneRegion)
	assert.EqualValues(t, 40_000_000, cfg.MaxImagePixels)
	assert.Empty(t, cfg.RedisAddrs)
	assert.Equal(t, ":8080", cfg.HTTPAddress())
}

func TestLoadRequiredKeys(t *testing.T) {
	_, err := load(envSource(map[string]string{"JWT_SECRET": "secret"}))
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, err = load(envSource(map[string]string{"DATABASE_URL": "postgres://x"}))
	assert.ErrorContains(t, err, "JWT_SECRET")

	cfg, err := load(envSource(map[string]string{"APP_ENV": "development", "JWT_SECRET": "secret"}))
	require.NoError(t, err)
	assert.True(t, cfg.IsDevelopment())

	_, err = load(envSource(map[string]string{"DATABASE_URL": "x", "JWT_SECRET": "s", "AUTH_METHOD": "phone"}))
	assert.Error(t, err)

	_, err = load(envSource(map[string]string{"DATABASE_URL": "x", "JWT_SECRET": "s", "KAFKA_BROKERS": "k:9092"}))
	assert.ErrorContains(t, err, "KAFKA_NOTIFY_TOPIC")
}

func TestFileOverlayWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://file/taskkez
jwt_secret: file-secret
port: 9090
redis_addr:
  - redis-a:6379
  - redis-b:6379
email_verification: mandatory
unique_email: false
`), 0o600))

	src, err := newSource(path)
	require.NoError(t, err)
	src.lookup = func(k string) (string, bool) {
		if k == "PORT" {
			return "7070", true
		}
		return "", false
	}

	cfg, err := load(src)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "file-secret", cfg.JWTSecret)
	assert.Equal(t, []string{"redis-a:6379", "redis-b:6379"}, cfg.RedisAddrs)
	assert.Equal(t, auth.VerificationMandatory, cfg.EmailVerification)
	assert.False(t, cfg.UniqueEmail)
}
