package repository

import (
	"context"

	"github.com/dial-lab/dtrack/internal/model"
)

// CustodyRepository provides access to custody records. Transition methods
// are status-guarded at the SQL level so concurrent attempts cannot skip
// states; an unmet guard surfaces as ErrConflict, a missing serial as
// ErrNotFound.
type CustodyRepository interface {
	// Create inserts a new record. Duplicate serials fail with ErrConflict.
	Create(ctx context.Context, rec *model.CustodyRecord) error
	// Get loads a record by serial number.
	Get(ctx context.Context, serialNo string) (*model.CustodyRecord, error)
	// AssignTeam moves an available record to issued under the given holder.
	AssignTeam(ctx context.Context, serialNo, teamCode string) error
	// AssignSubuser sets the subuser on an issued, currently unassigned
	// record belonging to teamCode, appending note to the detail journal.
	AssignSubuser(ctx context.Context, serialNo, teamCode, subuser, note string) error
	// EnterData writes descriptive fields and appends the journal entry on
	// an issued record matching both teamCode and subuser.
	EnterData(ctx context.Context, serialNo, teamCode, subuser string, entry model.DataEntry, note string) error
	// Seal moves an issued record owned by teamCode to sealed, appending note.
	Seal(ctx context.Context, serialNo, teamCode, note string) error
	// AdminUpdate overwrites every mutable field, status included, with no
	// transition guard. Privileged escape hatch; callers gate it by role.
	AdminUpdate(ctx context.Context, rec *model.CustodyRecord) error
	// List returns records matching the filter, newest first.
	List(ctx context.Context, f model.CustodyFilter) ([]model.CustodyRecord, error)
	// HolderHasIssued reports whether the team already holds an issued record.
	HolderHasIssued(ctx context.Context, teamCode string) (bool, error)
}
