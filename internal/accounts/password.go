package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/taskkez-be/internal/errs"
	"github.com/hongminglow/taskkez-be/internal/metrics"
	"github.com/hongminglow/taskkez-be/internal/notify"
	"github.com/hongminglow/taskkez-be/internal/storage"
	"github.com/hongminglow/taskkez-be/internal/verification"
)

// ResetConfirmInput completes a password reset.
type ResetConfirmInput struct {
	UID          string
	Token        string
	NewPassword1 string
	NewPassword2 string
}

// ChangePasswordInput changes the password of a signed-in user.
type ChangePasswordInput struct {
	OldPassword  string
	NewPassword1 string
	NewPassword2 string
}

// RequestPasswordReset sends a reset token to the owner of email. Unknown
// addresses are reported to the caller.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer func() { s.metrics.Event(metrics.EventPasswordReset, err) }()

	email = strings.TrimSpace(email)
	if email == "" {
		return errs.NotFound(MsgUnknownEmail)
	}
	user, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return errs.NotFound(MsgUnknownEmail)
	}
	if err != nil {
		return err
	}
	if !user.IsActive {
		s.log.Info("password reset skipped for inactive user", zap.Int64("user_id", user.ID))
		return nil
	}

	token, err := s.tokens.IssueReset(user)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	msg := notify.Message{
		Kind:     notify.KindPasswordReset,
		UserID:   user.ID,
		Username: user.Username,
		To:       user.Email,
		Key:      token,
		UID:      verification.EncodeUID(user.ID),
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		return fmt.Errorf("send reset token: %w", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password using a reset token. Each token
// works once, and only while the password it was issued against is current.
func (s *Service) ConfirmPasswordReset(ctx context.Context, in ResetConfirmInput) (err error) {
	defer func() { s.metrics.Event(metrics.EventPasswordConfirm, err) }()

	fe := errs.FieldErrors{}
	checkNewPassword(fe, "new_password1", "new_password2", "new_password2", in.NewPassword1, in.NewPassword2)

	var claims *verification.Claims
	userID, err := verification.DecodeUID(in.UID)
	if err != nil {
		fe.Add("uid", MsgInvalidValue)
	} else {
		user, err := s.store.GetUser(ctx, userID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			fe.Add("uid", MsgInvalidValue)
		case err != nil:
			return err
		default:
			if claims, err = s.tokens.ParseReset(in.Token, user); err != nil {
				fe.Add("token", MsgInvalidValue)
			}
		}
	}
	if err := fe.Err(); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(in.NewPassword1)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.tokens.Claim(ctx, claims); err != nil {
		if errors.Is(err, verification.ErrTokenUsed) {
			return errs.Field("token", MsgInvalidValue)
		}
		return err
	}
	if err := s.store.SetPassword(ctx, userID, hash); err != nil {
		if rerr := s.tokens.Release(ctx, claims); rerr != nil {
			s.log.Error("release reset token", zap.Int64("user_id", userID), zap.Error(rerr))
		}
		return fmt.Errorf("set password: %w", err)
	}
	s.log.Info("password reset", zap.Int64("user_id", userID))
	return nil
}

// ChangePassword replaces the password of userID after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, in ChangePasswordInput) (err error) {
	defer func() { s.metrics.Event(metrics.EventPasswordChange, err) }()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !s.hasher.Compare(user.PasswordHash, in.OldPassword) {
		return errs.Authentication(MsgWrongOldPassword)
	}

	fe := errs.FieldErrors{}
	checkNewPassword(fe, "new_password1", "new_password2", "new_password2", in.NewPassword1, in.NewPassword2)
	if err := fe.Err(); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(in.NewPassword1)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.SetPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}
