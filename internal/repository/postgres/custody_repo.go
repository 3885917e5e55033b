package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dial-lab/dtrack/internal/errs"
	"github.com/dial-lab/dtrack/internal/model"
)

// CustodyRepo implements CustodyRepository using PostgreSQL. Every transition
// is a conditional update on the expected prior status so concurrent attempts
// on the same serial cannot produce lost updates.
type CustodyRepo struct{ db *DB }

// NewCustodyRepo constructs a custody repository.
func NewCustodyRepo(db *DB) *CustodyRepo { return &CustodyRepo{db: db} }

const custodyCols = `serial_no, unit, unit_space, team_code, assigned_subuser, premise_name,
date_search, date_seized, data_details, status, created_by, created_on, barcode_value`

// Create inserts a new custody record.
func (r *CustodyRepo) Create(ctx context.Context, rec *model.CustodyRecord) error {
	const q = `
INSERT INTO custody_records
(serial_no, unit, unit_space, team_code, assigned_subuser, premise_name,
 date_search, date_seized, data_details, status, created_by, barcode_value)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.Pool.Exec(ctx, q,
		rec.SerialNo, rec.Unit, rec.UnitSpace, rec.TeamCode, rec.AssignedSubuser, rec.PremiseName,
		rec.DateSearch, rec.DateSeized, rec.DataDetails, rec.Status, rec.CreatedBy, rec.BarcodeValue)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// Get selects a record by serial number.
func (r *CustodyRepo) Get(ctx context.Context, serialNo string) (*model.CustodyRecord, error) {
	const q = `SELECT ` + custodyCols + ` FROM custody_records WHERE serial_no=$1`
	row := r.db.Pool.QueryRow(ctx, q, serialNo)
	var rec model.CustodyRecord
	if err := row.Scan(&rec.SerialNo, &rec.Unit, &rec.UnitSpace, &rec.TeamCode, &rec.AssignedSubuser,
		&rec.PremiseName, &rec.DateSearch, &rec.DateSeized, &rec.DataDetails, &rec.Status,
		&rec.CreatedBy, &rec.CreatedOn, &rec.BarcodeValue); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// AssignTeam issues an available record to a holder.
func (r *CustodyRepo) AssignTeam(ctx context.Context, serialNo, teamCode string) error {
	const q = `
UPDATE custody_records SET team_code=$2, status='issued'
WHERE serial_no=$1 AND status='available' AND team_code=''`
	return r.guarded(ctx, q, serialNo, teamCode)
}

// AssignSubuser sets the subuser on an issued, unassigned record of teamCode.
func (r *CustodyRepo) AssignSubuser(ctx context.Context, serialNo, teamCode, subuser, note string) error {
	const q = `
UPDATE custody_records SET assigned_subuser=$3, data_details = data_details || $4
WHERE serial_no=$1 AND team_code=$2 AND status='issued' AND assigned_subuser=''`
	return r.guarded(ctx, q, serialNo, teamCode, subuser, note)
}

// EnterData writes descriptive fields and appends the journal entry.
func (r *CustodyRepo) EnterData(ctx context.Context, serialNo, teamCode, subuser string, entry model.DataEntry, note string) error {
	const q = `
UPDATE custody_records
SET premise_name=$4, date_search=$5, date_seized=$6, data_details = data_details || $7
WHERE serial_no=$1 AND team_code=$2 AND assigned_subuser=$3 AND status='issued'`
	return r.guarded(ctx, q, serialNo, teamCode, subuser, entry.PremiseName, entry.DateSearch, entry.DateSeized, note)
}

// Seal moves an issued record owned by teamCode to sealed.
func (r *CustodyRepo) Seal(ctx context.Context, serialNo, teamCode, note string) error {
	const q = `
UPDATE custody_records SET status='sealed', data_details = data_details || $3
WHERE serial_no=$1 AND team_code=$2 AND status='issued'`
	return r.guarded(ctx, q, serialNo, teamCode, note)
}

// AdminUpdate overwrites every mutable field with no transition guard.
func (r *CustodyRepo) AdminUpdate(ctx context.Context, rec *model.CustodyRecord) error {
	const q = `
UPDATE custody_records
SET unit=$2, unit_space=$3, team_code=$4, assigned_subuser=$5, premise_name=$6,
    date_search=$7, date_seized=$8, data_details=$9, status=$10, barcode_value=$11
WHERE serial_no=$1`
	tag, err := r.db.Pool.Exec(ctx, q,
		rec.SerialNo, rec.Unit, rec.UnitSpace, rec.TeamCode, rec.AssignedSubuser, rec.PremiseName,
		rec.DateSearch, rec.DateSeized, rec.DataDetails, rec.Status, rec.BarcodeValue)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// List returns records matching the filter, newest first.
func (r *CustodyRepo) List(ctx context.Context, f model.CustodyFilter) ([]model.CustodyRecord, error) {
	q := `SELECT ` + custodyCols + ` FROM custody_records WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		q += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if f.TeamCode != "" {
		args = append(args, f.TeamCode)
		q += fmt.Sprintf(" AND team_code=$%d", len(args))
	}
	if f.AssignedSubuser != "" {
		args = append(args, f.AssignedSubuser)
		q += fmt.Sprintf(" AND assigned_subuser=$%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		q += fmt.Sprintf(" AND (serial_no ILIKE $%d OR premise_name ILIKE $%d OR data_details ILIKE $%d)", n, n, n)
	}
	q += " ORDER BY created_on DESC"

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CustodyRecord
	for rows.Next() {
		var rec model.CustodyRecord
		if err := rows.Scan(&rec.SerialNo, &rec.Unit, &rec.UnitSpace, &rec.TeamCode, &rec.AssignedSubuser,
			&rec.PremiseName, &rec.DateSearch, &rec.DateSeized, &rec.DataDetails, &rec.Status,
			&rec.CreatedBy, &rec.CreatedOn, &rec.BarcodeValue); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// HolderHasIssued reports whether the team already holds an issued record.
func (r *CustodyRepo) HolderHasIssued(ctx context.Context, teamCode string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM custody_records WHERE team_code=$1 AND status='issued')`
	var busy bool
	if err := r.db.Pool.QueryRow(ctx, q, teamCode).Scan(&busy); err != nil {
		return false, err
	}
	return busy, nil
}

// guarded runs a conditional update and disambiguates a zero-row result into
// ErrNotFound (serial gone) or ErrConflict (guard failed, e.g. a concurrent
// transition changed the status first).
func (r *CustodyRepo) guarded(ctx context.Context, q string, serialNo string, args ...any) error {
	tag, err := r.db.Pool.Exec(ctx, q, append([]any{serialNo}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.Get(ctx, serialNo); err != nil {
		return err
	}
	return errs.ErrConflict
}
