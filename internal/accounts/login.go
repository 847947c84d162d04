package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/taskkez-be/internal/auth"
	"github.com/hongminglow/taskkez-be/internal/errs"
	"github.com/hongminglow/taskkez-be/internal/ledger"
	"github.com/hongminglow/taskkez-be/internal/metrics"
	"github.com/hongminglow/taskkez-be/internal/models"
	"github.com/hongminglow/taskkez-be/internal/storage"
)

// LoginInput carries whichever identifiers the client sent.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// Session is an authenticated user with a fresh access token.
type Session struct {
	User        models.User
	AccessToken string
}

// Login authenticates according to the configured auth.Method.
func (s *Service) Login(ctx context.Context, in LoginInput) (out Session, err error) {
	defer func() { s.metrics.Event(metrics.EventLogin, err) }()

	user, err := s.resolveLogin(ctx, in)
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, errs.Authentication(MsgWrongCredentials)
	}
	if err != nil {
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, errs.Authentication(MsgBanned)
	}
	if in.Password == "" || !s.hasher.Compare(user.PasswordHash, in.Password) {
		return Session{}, errs.Authentication(MsgWrongCredentials)
	}

	if s.policy.Verification == auth.VerificationMandatory {
		rec, err := s.store.FindEmail(ctx, user.ID, user.Email)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return Session{}, err
		}
		if err != nil || !rec.Verified {
			return Session{}, errs.VerificationRequired(MsgEmailNotVerified)
		}
	}

	token, err := s.sessions.Generate(user)
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	s.log.Info("user logged in", zap.Int64("user_id", user.ID))
	return Session{User: user, AccessToken: token}, nil
}

func (s *Service) resolveLogin(ctx context.Context, in LoginInput) (models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	switch s.policy.Method {
	case auth.MethodUsername:
		if username == "" {
			return models.User{}, storage.ErrNotFound
		}
		return s.store.FindByUsername(ctx, username)
	case auth.MethodEmail:
		if email == "" {
			return models.User{}, storage.ErrNotFound
		}
		return s.store.FindByEmail(ctx, email)
	default:
		if email != "" {
			return s.store.FindByEmail(ctx, email)
		}
		if username == "" {
			return models.User{}, storage.ErrNotFound
		}
		return s.store.FindByUsernameOrEmail(ctx, username)
	}
}

// Logout revokes the session identified by claims until it would expire.
func (s *Service) Logout(ctx context.Context, claims *auth.Claims) (err error) {
	defer func() { s.metrics.Event(metrics.EventLogout, err) }()

	if claims.ExpiresAt == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if _, err := s.ledger.Claim(ctx, ledger.NamespaceSessions, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Authenticate verifies a bearer token and rejects revoked sessions and
// sessions of users who were banned or deleted after signing in.
func (s *Service) Authenticate(ctx context.Context, raw string) (*auth.Claims, error) {
	claims, err := s.sessions.Parse(raw)
	if err != nil {
		return nil, err
	}
	revoked, err := s.ledger.Exists(ctx, ledger.NamespaceSessions, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: session revoked", auth.ErrInvalidToken)
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", auth.ErrInvalidToken)
	}
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, auth.ErrInactiveUser
	}
	if err != nil {
		return nil, fmt.Errorf("load session user: %w", err)
	}
	if !user.IsActive {
		return nil, auth.ErrInactiveUser
	}
	return claims, nil
}
