package repository

import "context"

// OptionRepository manages the admin-editable unit/vendor name lists.
type OptionRepository interface {
	// List returns the names under a type, alphabetically.
	List(ctx context.Context, typ string) ([]string, error)
	// Add inserts a name. Duplicates fail with ErrConflict.
	Add(ctx context.Context, typ, name string) error
	// Remove deletes a name. Missing entries fail with ErrNotFound.
	Remove(ctx context.Context, typ, name string) error
}
