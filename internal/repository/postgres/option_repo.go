package postgres

import (
	"context"

	"github.com/dial-lab/dtrack/internal/errs"
)

// OptionRepo implements OptionRepository using PostgreSQL.
type OptionRepo struct{ db *DB }

// NewOptionRepo constructs an option repository.
func NewOptionRepo(db *DB) *OptionRepo { return &OptionRepo{db: db} }

// List returns the names stored under a type, alphabetically.
func (r *OptionRepo) List(ctx context.Context, typ string) ([]string, error) {
	const q = `SELECT name FROM options WHERE type=$1 ORDER BY name`
	rows, err := r.db.Pool.Query(ctx, q, typ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Add inserts a name under a type.
func (r *OptionRepo) Add(ctx context.Context, typ, name string) error {
	const q = `INSERT INTO options (type, name) VALUES ($1, $2)`
	_, err := r.db.Pool.Exec(ctx, q, typ, name)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// Remove deletes a name under a type.
func (r *OptionRepo) Remove(ctx context.Context, typ, name string) error {
	const q = `DELETE FROM options WHERE type=$1 AND name=$2`
	tag, err := r.db.Pool.Exec(ctx, q, typ, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
