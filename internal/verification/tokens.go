// Package verification issues the time-boxed tokens that prove control of an
// email address or authorise a password reset. Tokens are HS256 JWTs whose
// audience names their purpose; expiry is checked when a token is used.
package verification

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hongminglow/taskkez-be/internal/ledger"
	"github.com/hongminglow/taskkez-be/internal/models"
)

const (
	PurposeEmailConfirm  = "email_confirm"
	PurposePasswordReset = "password_reset"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
	ErrTokenUsed    = errors.New("token already used")
)

// Claims carried by confirmation and reset tokens.
type Claims struct {
	Email       string `json:"email,omitempty"`
	AddressID   int64  `json:"eid,omitempty"`
	Fingerprint string `json:"pwd,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Service issues and validates verification tokens.
type Service struct {
	secret     []byte
	issuer     string
	confirmTTL time.Duration
	resetTTL   time.Duration
	ledger     ledger.Ledger
	now        func() time.Time
}

// NewService wires a token service. The ledger makes reset tokens single-use.
func NewService(secret, issuer string, confirmTTL, resetTTL time.Duration, l ledger.Ledger) *Service {
	return &Service{
		secret:     []byte(secret),
		issuer:     issuer,
		confirmTTL: confirmTTL,
		resetTTL:   resetTTL,
		ledger:     l,
		now:        time.Now,
	}
}

// IssueConfirmation returns a key proving that userID controls email. The key
// is bound to the address record addressID and confirms no other record.
func (s *Service) IssueConfirmation(userID, addressID int64, email string) (string, error) {
	return s.sign(PurposeEmailConfirm, userID, s.confirmTTL, Claims{Email: email, AddressID: addressID})
}

// ParseConfirmation verifies a confirmation key.
func (s *Service) ParseConfirmation(key string) (*Claims, error) {
	claims, err := s.parse(PurposeEmailConfirm, key)
	if err != nil {
		return nil, err
	}
	if claims.Email == "" || claims.AddressID == 0 {
		return nil, fmt.Errorf("%w: missing address", ErrInvalidToken)
	}
	return claims, nil
}

// IssueReset returns a reset token bound to the user's current password hash,
// so any password change invalidates it.
func (s *Service) IssueReset(user models.User) (string, error) {
	return s.sign(PurposePasswordReset, user.ID, s.resetTTL, Claims{Fingerprint: Fingerprint(user.PasswordHash)})
}

// ParseReset verifies a reset token for user.
func (s *Service) ParseReset(key string, user models.User) (*Claims, error) {
	claims, err := s.parse(PurposePasswordReset, key)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil || id != user.ID {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	if claims.Fingerprint != Fingerprint(user.PasswordHash) {
		return nil, fmt.Errorf("%w: password changed since issue", ErrInvalidToken)
	}
	return claims, nil
}

// Claim marks a reset token as used. A second claim returns ErrTokenUsed.
func (s *Service) Claim(ctx context.Context, claims *Claims) error {
	ttl := s.resetTTL
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	ok, err := s.ledger.Claim(ctx, ledger.NamespaceResetTokens, claims.ID, ttl)
	if err != nil {
		return fmt.Errorf("claim reset token: %w", err)
	}
	if !ok {
		return ErrTokenUsed
	}
	return nil
}

// Release undoes Claim after a failed password write.
func (s *Service) Release(ctx context.Context, claims *Claims) error {
	return s.ledger.Release(ctx, ledger.NamespaceResetTokens, claims.ID)
}

func (s *Service) sign(purpose string, userID int64, ttl time.Duration, claims Claims) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   strconv.FormatInt(userID, 10),
		Audience:  jwt.ClaimStrings{purpose},
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Service) parse(purpose, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(purpose),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return claims, nil
}

// Fingerprint is a short digest of a password hash.
func Fingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

// EncodeUID renders a user id for reset links.
func EncodeUID(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeUID reverses EncodeUID.
func DecodeUID(uid string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}
