package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/taskkez-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// Unique constraints a write can trip over. Backends report these names in
// ConstraintError so callers can point the client at the offending field.
const (
	ConstraintUsername         = "users_username_lower_idx"
	ConstraintUserEmail        = "users_email_lower_idx"
	ConstraintPhone            = "profiles_phone_number_key"
	ConstraintUserEmailAddress = "email_addresses_user_email_idx"
)

// ConstraintError is returned when a unique constraint rejects a write.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Err != nil {
		return "unique constraint " + e.Constraint + ": " + e.Err.Error()
	}
	return "unique constraint " + e.Constraint
}

func (e *ConstraintError) Unwrap() error { return ErrAlreadyExists }

// UserStore persists identities. CreateUser also creates the user's empty
// profile row so that no identity ever exists without one.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error)
	UpdateUser(ctx context.Context, user models.User) error
	SetPassword(ctx context.Context, userID int64, passwordHash string) error
	UsernameTaken(ctx context.Context, username string, exceptUserID int64) (bool, error)
}

// EmailStore is the registry of addresses claimed by each user.
type EmailStore interface {
	AddEmail(ctx context.Context, rec models.EmailAddress) (models.EmailAddress, error)
	// LockEmails returns the user's addresses and, inside a transaction, holds
	// their rows until commit.
	LockEmails(ctx context.Context, userID int64) ([]models.EmailAddress, error)
	FindEmail(ctx context.Context, userID int64, email string) (models.EmailAddress, error)
	FindUnverifiedEmail(ctx context.Context, email string) (models.EmailAddress, error)
	EmailInUse(ctx context.Context, email string, exceptUserID int64) (bool, error)
	MarkVerified(ctx context.Context, id int64) error
	SetPrimary(ctx context.Context, userID, id int64) error
	DeleteEmails(ctx context.Context, userID int64, email string, exceptID int64) (int64, error)
}

// ProfileStore persists profiles and their nested collections.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID int64) (models.Profile, error)
	UpdateProfile(ctx context.Context, profile models.Profile) error
	PhoneTaken(ctx context.Context, phone string, exceptUserID int64) (bool, error)
	ListAddresses(ctx context.Context, userID int64) ([]models.Address, error)
	ReplaceAddresses(ctx context.Context, userID int64, addrs []models.Address) ([]models.Address, error)
	ListIDImages(ctx context.Context, userID int64) ([]models.IDImage, error)
	ReplaceIDImages(ctx context.Context, userID int64, images []models.IDImage) ([]models.IDImage, error)
}

// TxManager runs fn inside one transaction carried by the context handed to fn.
// Store calls made with that context join the transaction; a non-nil error or
// panic from fn rolls everything back.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store is everything the account and profile engines need from persistence.
type Store interface {
	UserStore
	EmailStore
	ProfileStore
	TxManager
}
