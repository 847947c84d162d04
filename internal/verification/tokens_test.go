package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/taskkez-be/internal/ledger"
	"github.com/hongminglow/taskkez-be/internal/models"
)

func newService() *Service {
	return NewService("secret", "taskkez", 72*time.Hour, 30*time.Minute, ledger.NewMemoryLedger())
}

func TestConfirmationRoundTrip(t *testing.T) {
	s := newService()
	key, err := s.IssueConfirmation(7, 11, "alice@x.com")
	require.NoError(t, err)

	claims, err := s.ParseConfirmation(key)
	require.NoError(t, err)
	id, _ := claims.UserID()
	assert.EqualValues(t, 7, id)
	assert.Equal(t, "alice@x.com", claims.Email)
	assert.EqualValues(t, 11, claims.AddressID)
}

func TestConfirmationExpiresAtUseTime(t *testing.T) {
	s := newService()
	key, err := s.IssueConfirmation(7, 11, "alice@x.com")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(73 * time.Hour) }
	_, err = s.ParseConfirmation(key)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestPurposesDoNotMix(t *testing.T) {
	s := newService()
	user := models.User{ID: 7, PasswordHash: "hash"}
	reset, err := s.IssueReset(user)
	require.NoError(t, err)

	_, err = s.ParseConfirmation(reset)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unbound, err := s.IssueConfirmation(7, 0, "alice@x.com")
	require.NoError(t, err)
	_, err = s.ParseConfirmation(unbound)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.ParseConfirmation("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetTokenBoundToPasswordAndUser(t *testing.T) {
	s := newService()
	user := models.User{ID: 7, PasswordHash: "hash-1"}
	key, err := s.IssueReset(user)
	require.NoError(t, err)

	_, err = s.ParseReset(key, user)
	require.NoError(t, err)

	_, err = s.ParseReset(key, models.User{ID: 8, PasswordHash: "hash-1"})
	assert.ErrorIs(t, err, ErrInvalidToken)

	user.PasswordHash = "hash-2"
	_, err = s.ParseReset(key, user)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetClaimIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s := newService()
	user := models.User{ID: 7, PasswordHash: "hash"}
	key, _ := s.IssueReset(user)
	claims, err := s.ParseReset(key, user)
	require.NoError(t, err)

	require.NoError(t, s.Claim(ctx, claims))
	assert.True(t, errors.Is(s.Claim(ctx, claims), ErrTokenUsed))

	require.NoError(t, s.Release(ctx, claims))
	assert.NoError(t, s.Claim(ctx, claims))
}

func TestUIDEncoding(t *testing.T) {
	uid := EncodeUID(12345)
	id, err := DecodeUID(uid)
	require.NoError(t, err)
	assert.EqualValues(t, 12345, id)

	_, err = DecodeUID("***")
	assert.Error(t, err)
}
