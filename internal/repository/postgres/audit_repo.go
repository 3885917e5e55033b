package postgres

import (
	"context"

	"github.com/dial-lab/dtrack/internal/model"
)

// AuditRepo implements AuditRepository using PostgreSQL.
type AuditRepo struct{ db *DB }

// NewAuditRepo constructs an audit repository.
func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

// Append inserts one action row; the timestamp is set server-side.
func (r *AuditRepo) Append(ctx context.Context, username, action string) error {
	const q = `INSERT INTO logs (username, action) VALUES ($1, $2)`
	_, err := r.db.Pool.Exec(ctx, q, username, action)
	return err
}

// List returns the newest action rows, up to limit.
func (r *AuditRepo) List(ctx context.Context, limit int) ([]model.LogEntry, error) {
	const q = `SELECT id, username, action, ts FROM logs ORDER BY id DESC LIMIT $1`
	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Action, &e.TS); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
