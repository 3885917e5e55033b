package repository

import (
	"context"

	"github.com/dial-lab/dtrack/internal/model"
)

// AuditRepository stores the append-only action trail.
type AuditRepository interface {
	// Append inserts one (username, action) row with a server timestamp.
	Append(ctx context.Context, username, action string) error
	// List returns the newest rows, up to limit.
	List(ctx context.Context, limit int) ([]model.LogEntry, error)
}
