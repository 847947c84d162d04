package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/taskkez-be/internal/errs"
	"github.com/hongminglow/taskkez-be/internal/metrics"
	"github.com/hongminglow/taskkez-be/internal/models"
	"github.com/hongminglow/taskkez-be/internal/storage"
)

// RequestEmailVerification re-sends the confirmation key for an address that
// is registered but not yet verified.
func (s *Service) RequestEmailVerification(ctx context.Context, email string) (err error) {
	defer func() { s.metrics.Event(metrics.EventEmailResend, err) }()

	rec, err := s.store.FindUnverifiedEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, storage.ErrNotFound) {
		return errs.NotFound(MsgNoPendingEmail)
	}
	if err != nil {
		return err
	}
	user, err := s.store.GetUser(ctx, rec.UserID)
	if err != nil {
		return fmt.Errorf("load email owner: %w", err)
	}
	_, err = s.notifyConfirmation(ctx, user.Username, rec)
	return err
}

// ConfirmEmail consumes a confirmation key. The user's address rows are locked
// for the duration. A key names one address record; once that record is
// verified or gone the key is spent, even if the same address is added again.
// When the user holds more than one address, the confirmed one replaces the
// old primary.
func (s *Service) ConfirmEmail(ctx context.Context, key string) (err error) {
	defer func() { s.metrics.Event(metrics.EventEmailConfirm, err) }()

	claims, err := s.tokens.ParseConfirmation(key)
	if err != nil {
		return errs.InvalidToken(MsgInvalidKey, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return errs.InvalidToken(MsgInvalidKey, err)
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		recs, err := s.store.LockEmails(ctx, userID)
		if err != nil {
			return err
		}
		var rec *models.EmailAddress
		for i := range recs {
			if recs[i].ID == claims.AddressID && strings.EqualFold(recs[i].Email, claims.Email) {
				rec = &recs[i]
				break
			}
		}
		if rec == nil || rec.Verified {
			return errs.InvalidToken(MsgInvalidKey, nil)
		}
		if err := s.store.MarkVerified(ctx, rec.ID); err != nil {
			return err
		}
		if len(recs) > 1 {
			return s.promote(ctx, userID, *rec)
		}
		return nil
	})
	if err != nil {
		return ConstraintFieldError(err)
	}
	s.log.Info("email confirmed", zap.Int64("user_id", userID))
	return nil
}

// promote makes rec the user's primary address, dropping records of the
// address it replaces.
func (s *Service) promote(ctx context.Context, userID int64, rec models.EmailAddress) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.store.DeleteEmails(ctx, userID, user.Email, rec.ID); err != nil {
		return err
	}
	if err := s.store.SetPrimary(ctx, userID, rec.ID); err != nil {
		return err
	}
	user.Email = rec.Email
	return s.store.UpdateUser(ctx, user)
}

// RequestEmailChange records email as a pending, unverified address of user.
// It must run inside the caller's transaction; the caller sends the
// confirmation with SendConfirmation once that transaction commits.
// It returns the pending record, or a zero record when email was already
// verified for this user and has simply been made primary again.
func (s *Service) RequestEmailChange(ctx context.Context, user models.User, raw string) (rec models.EmailAddress, err error) {
	defer func() { s.metrics.Event(metrics.EventEmailChange, err) }()

	email, ok := NormalizeEmail(raw)
	if !ok {
		return models.EmailAddress{}, errs.Field("email", MsgEmailInvalid)
	}

	existing, err := s.store.FindEmail(ctx, user.ID, email)
	switch {
	case err == nil && !existing.Verified:
		return models.EmailAddress{}, errs.Conflict(MsgConfirmationSent)
	case err == nil:
		return models.EmailAddress{}, s.promote(ctx, user.ID, existing)
	case !errors.Is(err, storage.ErrNotFound):
		return models.EmailAddress{}, err
	}

	if s.policy.UniqueEmail {
		inUse, err := s.store.EmailInUse(ctx, email, user.ID)
		if err != nil {
			return models.EmailAddress{}, err
		}
		if inUse {
			return models.EmailAddress{}, errs.Field("email", MsgEmailTaken)
		}
	}

	rec, err = s.store.AddEmail(ctx, models.EmailAddress{UserID: user.ID, Email: email})
	if err != nil {
		return models.EmailAddress{}, ConstraintFieldError(err)
	}
	return rec, nil
}

// SendConfirmation issues and delivers a confirmation key for rec.
func (s *Service) SendConfirmation(ctx context.Context, user models.User, rec models.EmailAddress) error {
	_, err := s.notifyConfirmation(ctx, user.Username, rec)
	return err
}
