package repository

import (
	"context"
	"errors"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/identity"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
)

// AccountRepository implements identity.AccountStore. Accounts are keyed by
// normalised email, which makes the email unique per store.
type AccountRepository struct {
	store docstore.Store
}

var _ identity.AccountStore = (*AccountRepository)(nil)

// NewAccountRepository creates a repository over store.
func NewAccountRepository(store docstore.Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// GetByEmail implements identity.AccountStore.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*identity.Account, error) {
	key := identity.NormalizeEmail(email)
	rec, err := r.store.GetRecord(ctx, docstore.CollectionAccounts, key)
	switch {
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, docstore.ErrInvalidArgument):
		return nil, shared.ErrAccountNotFound
	case err != nil:
		return nil, shared.ErrAccountsUnavailable.Wrap(err)
	}

	return &identity.Account{
		UserID:       stringField(rec, fieldUserID),
		Email:        key,
		PasswordHash: stringField(rec, fieldPasswordHash),
		DisplayName:  stringField(rec, fieldDisplayName),
		CreatedAt:    timeField(rec, fieldCreatedAt),
	}, nil
}

// Create implements identity.AccountStore. The existence check and the write
// are separate calls; two simultaneous sign-ups with one email can both pass.
func (r *AccountRepository) Create(ctx context.Context, a *identity.Account) error {
	key := identity.NormalizeEmail(a.Email)

	_, err := r.store.GetRecord(ctx, docstore.CollectionAccounts, key)
	switch {
	case err == nil:
		return shared.ErrEmailTaken
	case errors.Is(err, docstore.ErrInvalidArgument):
		return shared.ErrInvalidEmail
	case !errors.Is(err, docstore.ErrNotFound):
		return shared.ErrAccountsUnavailable.Wrap(err)
	}

	err = r.store.SetRecord(ctx, docstore.CollectionAccounts, key, docstore.Record{
		fieldUserID:       a.UserID,
		fieldEmail:        key,
		fieldPasswordHash: a.PasswordHash,
		fieldDisplayName:  a.DisplayName,
		fieldCreatedAt:    formatTime(a.CreatedAt),
	})
	if err != nil {
		return shared.ErrAccountsUnavailable.Wrap(err)
	}
	return nil
}
