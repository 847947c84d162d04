package accounts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/taskkez-be/internal/errs"
	"github.com/hongminglow/taskkez-be/internal/metrics"
	"github.com/hongminglow/taskkez-be/internal/models"
)

// RegisterInput is a sign-up request.
type RegisterInput struct {
	Username    string
	Email       string
	Password1   string
	Password2   string
	FirstName   string
	LastName    string
	PhoneNumber string
	AcceptTerms bool
}

// Registration is the result of a successful sign-up.
type Registration struct {
	User            models.User
	AccessToken     string
	ConfirmationKey string
}

// Register validates in, creates the identity, its profile and an unverified
// primary email in one transaction, then sends the confirmation key and issues
// an access token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (out Registration, err error) {
	defer func() { s.metrics.Event(metrics.EventRegister, err) }()

	fe := errs.FieldErrors{}
	username := strings.TrimSpace(in.Username)
	if err := s.CheckUsername(ctx, username, 0); err != nil && !mergeFieldErrors(fe, err) {
		return Registration{}, err
	}

	email, ok := NormalizeEmail(in.Email)
	switch {
	case strings.TrimSpace(in.Email) == "":
		fe.Add("email", MsgRequired)
	case !ok:
		fe.Add("email", MsgEmailInvalid)
	case s.policy.UniqueEmail:
		inUse, err := s.store.EmailInUse(ctx, email, 0)
		if err != nil {
			return Registration{}, err
		}
		if inUse {
			fe.Add("email", MsgEmailTaken)
		}
	}

	checkNewPassword(fe, "password1", "password2", "non_field_errors", in.Password1, in.Password2)

	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	if firstName == "" {
		fe.Add("first_name", MsgRequired)
	}
	if lastName == "" {
		fe.Add("last_name", MsgRequired)
	}

	var phone string
	if strings.TrimSpace(in.PhoneNumber) == "" {
		fe.Add("phone_number", MsgRequired)
	} else if phone, err = s.CheckPhone(ctx, in.PhoneNumber, 0); err != nil && !mergeFieldErrors(fe, err) {
		return Registration{}, err
	}

	if err := fe.Err(); err != nil {
		return Registration{}, err
	}

	hash, err := s.hasher.Hash(in.Password1)
	if err != nil {
		return Registration{}, fmt.Errorf("hash password: %w", err)
	}

	var (
		user    models.User
		primary models.EmailAddress
	)
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		created, err := s.store.CreateUser(ctx, models.User{
			Username:     username,
			Email:        email,
			FirstName:    firstName,
			LastName:     lastName,
			PasswordHash: hash,
			IsActive:     true,
		})
		if err != nil {
			return err
		}
		profile, err := s.store.GetProfile(ctx, created.ID)
		if err != nil {
			return fmt.Errorf("load new profile: %w", err)
		}
		profile.PhoneNumber = phone
		profile.AcceptTerms = in.AcceptTerms
		if err := s.store.UpdateProfile(ctx, profile); err != nil {
			return err
		}
		primary, err = s.store.AddEmail(ctx, models.EmailAddress{
			UserID:  created.ID,
			Email:   email,
			Primary: true,
		})
		if err != nil {
			return err
		}
		user = created
		return nil
	})
	if err != nil {
		return Registration{}, ConstraintFieldError(err)
	}

	key, err := s.notifyConfirmation(ctx, user.Username, primary)
	if err != nil {
		return Registration{}, fmt.Errorf("issue confirmation key: %w", err)
	}
	token, err := s.sessions.Generate(user)
	if err != nil {
		return Registration{}, fmt.Errorf("issue access token: %w", err)
	}

	s.log.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return Registration{User: user, AccessToken: token, ConfirmationKey: key}, nil
}
