package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dial-lab/dtrack/internal/errs"
	"github.com/dial-lab/dtrack/internal/model"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

const accountCols = `id, username, credential, role, approved, valid_till, password_expiry, parent_user, created_at`

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, username, credential, role, approved, valid_till, password_expiry, parent_user)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Pool.Exec(ctx, q, a.ID, a.Username, a.Credential, a.Role, a.Approved, a.ValidTill, a.PasswordExpiry, a.Parent)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// GetByUsername selects an account by username.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM accounts WHERE username=$1`
	row := r.db.Pool.QueryRow(ctx, q, username)
	var a model.Account
	if err := row.Scan(&a.ID, &a.Username, &a.Credential, &a.Role, &a.Approved, &a.ValidTill, &a.PasswordExpiry, &a.Parent, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// SetApproved flips the approval flag on an existing account.
func (r *AccountRepo) SetApproved(ctx context.Context, username string, approved bool) error {
	const q = `UPDATE accounts SET approved=$2 WHERE username=$1`
	tag, err := r.db.Pool.Exec(ctx, q, username, approved)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetCredential replaces the stored credential and password expiry deadline.
func (r *AccountRepo) SetCredential(ctx context.Context, username, credential string, expiry time.Time) error {
	const q = `UPDATE accounts SET credential=$2, password_expiry=$3 WHERE username=$1`
	tag, err := r.db.Pool.Exec(ctx, q, username, credential, expiry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// List returns all accounts ordered by username.
func (r *AccountRepo) List(ctx context.Context) ([]model.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM accounts ORDER BY username`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccounts(rows)
}

// ListSubusers returns subuser accounts under a parent team, newest first.
func (r *AccountRepo) ListSubusers(ctx context.Context, parent string) ([]model.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM accounts WHERE role='subuser' AND parent_user=$1 ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, parent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccounts(rows)
}

func scanAccounts(rows pgx.Rows) ([]model.Account, error) {
	var out []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Username, &a.Credential, &a.Role, &a.Approved, &a.ValidTill, &a.PasswordExpiry, &a.Parent, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
