package accounts

import (
	"context"
	"errors"

	"github.com/hongminglow/taskkez-be/internal/errs"
	"github.com/hongminglow/taskkez-be/internal/models"
	"github.com/hongminglow/taskkez-be/internal/storage"
)

// GetAccount loads a user with profile and collections.
func (s *Service) GetAccount(ctx context.Context, userID int64) (models.Account, error) {
	return LoadAccount(ctx, s.store, userID)
}

// LoadAccount reads an Account from any store handle, including one bound to
// a transaction.
func LoadAccount(ctx context.Context, store storage.Store, userID int64) (models.Account, error) {
	user, err := store.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Account{}, errs.NotFound(MsgNotFound)
	}
	if err != nil {
		return models.Account{}, err
	}
	profile, err := store.GetProfile(ctx, userID)
	if err != nil {
		return models.Account{}, err
	}
	addrs, err := store.ListAddresses(ctx, userID)
	if err != nil {
		return models.Account{}, err
	}
	images, err := store.ListIDImages(ctx, userID)
	if err != nil {
		return models.Account{}, err
	}
	return models.Account{User: user, Profile: profile, Addresses: addrs, IDImages: images}, nil
}
