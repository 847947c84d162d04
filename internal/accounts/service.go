// Package accounts implements the account workflows: registration, login and
// logout, email verification and re-verification, and password reset/change.
package accounts

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hongminglow/taskkez-be/internal/auth"
	"github.com/hongminglow/taskkez-be/internal/errs"
	"github.com/hongminglow/taskkez-be/internal/ledger"
	"github.com/hongminglow/taskkez-be/internal/metrics"
	"github.com/hongminglow/taskkez-be/internal/models"
	"github.com/hongminglow/taskkez-be/internal/notify"
	"github.com/hongminglow/taskkez-be/internal/storage"
	"github.com/hongminglow/taskkez-be/internal/verification"
)

// Client-facing messages.
const (
	MsgRequired         = "This field is required."
	MsgPasswordMismatch = "The two password fields didn't match."
	MsgUsernameTaken    = "A user with that username already exists."
	MsgUsernameInvalid  = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	MsgUsernameTooLong  = "Ensure this field has no more than 150 characters."
	MsgEmailInvalid     = "Enter a valid email address."
	MsgEmailTaken       = "A user is already registered with this e-mail address."
	MsgPhoneInvalid     = "Enter a valid phone number."
	MsgPhoneTaken       = "phone number already exist."
	MsgWrongCredentials = "Wrong username or password."
	MsgBanned           = "User account is banned by admin."
	MsgEmailNotVerified = "E-mail is not verified."
	MsgConfirmationSent = "Email confirmation has been sent"
	MsgInvalidKey       = "Invalid or expired confirmation key."
	MsgUnknownEmail     = "please enter correct email."
	MsgNoPendingEmail   = "E-mail address not found or already verified."
	MsgInvalidValue     = "Invalid value"
	MsgWrongOldPassword = "Your old password was entered incorrectly. Please enter it again."
	MsgNotFound         = "Not found."
)

// Policy is the start-up configuration of the workflows.
type Policy struct {
	Method       auth.Method
	Verification auth.VerificationMode
	UniqueEmail  bool
	// PhoneRegion is used for numbers given without a country prefix.
	PhoneRegion string
}

// Deps are the collaborators of a Service.
type Deps struct {
	Store    storage.Store
	Hasher   auth.PasswordHasher
	Sessions *auth.TokenManager
	Tokens   *verification.Service
	Ledger   ledger.Ledger
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Service runs the account workflows.
type Service struct {
	store    storage.Store
	hasher   auth.PasswordHasher
	sessions *auth.TokenManager
	tokens   *verification.Service
	ledger   ledger.Ledger
	notifier notify.Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger
	policy   Policy
}

func NewService(d Deps, policy Policy) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if policy.Method == "" {
		policy.Method = auth.MethodUsernameEmail
	}
	if policy.Verification == "" {
		policy.Verification = auth.VerificationOptional
	}
	if policy.PhoneRegion == "" {
		policy.PhoneRegion = "EG"
	}
	return &Service{
		store:    d.Store,
		hasher:   d.Hasher,
		sessions: d.Sessions,
		tokens:   d.Tokens,
		ledger:   d.Ledger,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		log:      d.Logger,
		policy:   policy,
	}
}

// Policy returns the configured policy.
func (s *Service) Policy() Policy { return s.policy }

// ConstraintFieldError turns a unique-constraint failure reported by the store
// into the field error a client would have seen from the pre-check.
func ConstraintFieldError(err error) error {
	var ce *storage.ConstraintError
	if !errors.As(err, &ce) {
		return err
	}
	switch ce.Constraint {
	case storage.ConstraintUsername:
		return errs.Field("username", MsgUsernameTaken)
	case storage.ConstraintUserEmail, storage.ConstraintUserEmailAddress:
		return errs.Field("email", MsgEmailTaken)
	case storage.ConstraintPhone:
		return errs.Field("phone_number", MsgPhoneTaken)
	}
	return err
}

// notifyConfirmation issues a confirmation key for rec and hands it to the
// notifier. Delivery failures are logged, not returned: the caller's write has
// already committed and the user can ask for a resend.
func (s *Service) notifyConfirmation(ctx context.Context, username string, rec models.EmailAddress) (string, error) {
	key, err := s.tokens.IssueConfirmation(rec.UserID, rec.ID, rec.Email)
	if err != nil {
		return "", err
	}
	msg := notify.Message{
		Kind:     notify.KindEmailConfirmation,
		UserID:   rec.UserID,
		Username: username,
		To:       rec.Email,
		Key:      key,
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.log.Warn("confirmation notification failed", zap.Int64("user_id", rec.UserID), zap.Error(err))
	}
	return key, nil
}
