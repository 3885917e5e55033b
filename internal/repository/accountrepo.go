// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/dial-lab/dtrack/internal/model"
)

// AccountRepository provides access to login accounts.
type AccountRepository interface {
	// Create inserts a new account. Duplicate usernames fail with ErrConflict.
	Create(ctx context.Context, a *model.Account) error
	// GetByUsername loads an account by its unique username.
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	// SetApproved flips the approval flag.
	SetApproved(ctx context.Context, username string, approved bool) error
	// SetCredential replaces the stored credential and password expiry.
	SetCredential(ctx context.Context, username, credential string, expiry time.Time) error
	// List returns all accounts ordered by username.
	List(ctx context.Context) ([]model.Account, error)
	// ListSubusers returns the subuser accounts under a parent team.
	ListSubusers(ctx context.Context, parent string) ([]model.Account, error)
}
