// Package identity issues and verifies user identities: email/password
// accounts hashed with bcrypt and HS256 session tokens.
package identity

import (
	"context"
	"strings"
	"time"
)

// Account is the credential record behind a user id.
type Account struct {
	UserID       string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

// AccountStore persists accounts keyed by normalised email.
type AccountStore interface {
	// GetByEmail returns the account or shared.ErrAccountNotFound.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Create stores a new account or returns shared.ErrEmailTaken.
	Create(ctx context.Context, a *Account) error
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
