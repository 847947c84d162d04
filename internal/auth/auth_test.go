package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/taskkez-be/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "taskkez", time.Hour)
	raw, err := tm.Generate(models.User{ID: 42, Username: "alice", Email: "alice@x.com"})
	require.NoError(t, err)

	claims, err := tm.Parse(raw)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
	assert.Equal(t, "alice", claims.Username)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenRejections(t *testing.T) {
	tm := NewTokenManager("secret", "taskkez", time.Minute)
	raw, err := tm.Generate(models.User{ID: 1})
	require.NoError(t, err)

	other := NewTokenManager("other-secret", "taskkez", time.Minute)
	_, err = other.Parse(raw)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	wrongIssuer := NewTokenManager("secret", "someone-else", time.Minute)
	_, err = wrongIssuer.Parse(raw)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	tm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tm.Parse(raw)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash("correct horse")
	require.NoError(t, err)

	assert.True(t, h.Compare(hash, "correct horse"))
	assert.False(t, h.Compare(hash, "wrong horse"))
	assert.False(t, h.Compare("", "correct horse"))
}

func TestValidatePassword(t *testing.T) {
	assert.Empty(t, ValidatePassword("s3cure-pass"))
	assert.Len(t, ValidatePassword("short"), 1)
	assert.Contains(t, ValidatePassword("1234567890"), "This password is entirely numeric.")
}

func TestParsePolicy(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodUsernameEmail, m)

	m, err = ParseMethod("EMAIL")
	require.NoError(t, err)
	assert.Equal(t, MethodEmail, m)

	_, err = ParseMethod("phone")
	assert.Error(t, err)

	v, err := ParseVerificationMode("mandatory")
	require.NoError(t, err)
	assert.Equal(t, VerificationMandatory, v)

	_, err = ParseVerificationMode("sometimes")
	assert.Error(t, err)
}
