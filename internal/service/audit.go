// Package service contains application services for accounts, custody
// records, and the disbursement chain. All authorization decisions live here;
// repositories only enforce storage-level guards.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/dial-lab/dtrack/internal/errs"
	"github.com/dial-lab/dtrack/internal/model"
	"github.com/dial-lab/dtrack/internal/repository"
)

// Auditor appends to the action trail. Logging is best-effort: a failed
// append must never fail the caller's primary operation, so errors are
// logged and swallowed.
type Auditor struct {
	repo repository.AuditRepository
	log  *zap.Logger
}

// NewAuditor constructs an Auditor. A nil logger falls back to zap.NewNop.
func NewAuditor(repo repository.AuditRepository, log *zap.Logger) *Auditor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Auditor{repo: repo, log: log}
}

// Record appends one "verb:subject:detail" action row for username.
func (a *Auditor) Record(ctx context.Context, username, action string) {
	if a == nil || a.repo == nil {
		return
	}
	if err := a.repo.Append(ctx, username, action); err != nil {
		a.log.Warn("audit append failed",
			zap.String("username", username),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

// Recent returns the newest action trail rows. Admin only. A non-positive
// limit falls back to 100 rows.
func (a *Auditor) Recent(ctx context.Context, sess model.Session, limit int) ([]model.LogEntry, error) {
	if !sess.IsAdmin() {
		return nil, errs.ErrUnauthorized
	}
	if limit <= 0 {
		limit = 100
	}
	return a.repo.List(ctx, limit)
}
