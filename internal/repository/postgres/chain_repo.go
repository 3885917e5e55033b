package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dial-lab/dtrack/internal/errs"
	"github.com/dial-lab/dtrack/internal/model"
)

// ChainRepo implements ChainRepository using PostgreSQL.
type ChainRepo struct{ db *DB }

// NewChainRepo constructs a disbursement chain repository.
func NewChainRepo(db *DB) *ChainRepo { return &ChainRepo{db: db} }

const extractionCols = `id, original_serial, unit, unit_space, team_code, data_details,
date_extraction_start, extracted_serial, extracted_by, working_copies,
date_receiving, assigned_user, created_by, created_on`

// CreateExtraction snapshots the sealed source, inserts the extraction row,
// and flips the source to in_extraction in one transaction.
func (r *ChainRepo) CreateExtraction(
	ctx context.Context, in model.ExtractionInput, createdBy string,
) (rec *model.ExtractionRecord, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `
SELECT unit, unit_space, team_code, data_details, status
FROM custody_records WHERE serial_no=$1 FOR UPDATE`
	var unit, unitSpace, teamCode, details string
	var status model.Status
	if err = tx.QueryRow(ctx, sel, in.OriginalSerial).Scan(&unit, &unitSpace, &teamCode, &details, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if status != model.StatusSealed {
		return nil, errs.ErrConflict
	}

	copies := in.WorkingCopies
	if copies == nil {
		copies = []string{}
	}
	copiesJSON, err := json.Marshal(copies)
	if err != nil {
		return nil, err
	}

	rec = &model.ExtractionRecord{
		OriginalSerial:      in.OriginalSerial,
		Unit:                unit,
		UnitSpace:           unitSpace,
		TeamCode:            teamCode,
		DataDetails:         details,
		DateExtractionStart: in.DateExtractionStart,
		ExtractedSerial:     in.ExtractedSerial,
		ExtractedBy:         in.Vendor,
		WorkingCopies:       copies,
		DateReceiving:       in.DateReceiving,
		AssignedUser:        in.AssignedUser,
		CreatedBy:           createdBy,
	}

	const ins = `
INSERT INTO extraction_records
(original_serial, unit, unit_space, team_code, data_details,
 date_extraction_start, extracted_serial, extracted_by, working_copies,
 date_receiving, assigned_user, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id, created_on`
	if err = tx.QueryRow(ctx, ins,
		rec.OriginalSerial, rec.Unit, rec.UnitSpace, rec.TeamCode, rec.DataDetails,
		rec.DateExtractionStart, rec.ExtractedSerial, rec.ExtractedBy, copiesJSON,
		rec.DateReceiving, rec.AssignedUser, rec.CreatedBy).Scan(&rec.ID, &rec.CreatedOn); err != nil {
		return nil, err
	}

	const upd = `UPDATE custody_records SET status='in_extraction' WHERE serial_no=$1 AND status='sealed'`
	tag, err := tx.Exec(ctx, upd, in.OriginalSerial)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		// row is locked above, so this only happens on a schema-level surprise
		err = errs.ErrConflict
		return nil, err
	}
	return rec, nil
}

// GetExtractionByOutput loads the extraction producing the given serial.
func (r *ChainRepo) GetExtractionByOutput(ctx context.Context, extractedSerial string) (*model.ExtractionRecord, error) {
	const q = `SELECT ` + extractionCols + ` FROM extraction_records WHERE extracted_serial=$1 ORDER BY id DESC LIMIT 1`
	row := r.db.Pool.QueryRow(ctx, q, extractedSerial)
	rec, err := scanExtraction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// CreateAnalysis inserts an analysis row.
func (r *ChainRepo) CreateAnalysis(ctx context.Context, rec *model.AnalysisRecord) error {
	const q = `
INSERT INTO analysis_records
(extracted_serial, analyst_name, date_disburse, analysis_notes, status, created_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_on`
	return r.db.Pool.QueryRow(ctx, q,
		rec.ExtractedSerial, rec.AnalystName, rec.DateDisburse, rec.AnalysisNotes,
		rec.Status, rec.CreatedBy).Scan(&rec.ID, &rec.CreatedOn)
}

// ListExtractions returns extraction rows, newest first.
func (r *ChainRepo) ListExtractions(ctx context.Context) ([]model.ExtractionRecord, error) {
	const q = `SELECT ` + extractionCols + ` FROM extraction_records ORDER BY id DESC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ExtractionRecord
	for rows.Next() {
		rec, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ListAnalyses returns analysis rows, newest first, optionally restricted to
// extractions whose snapshot holder matches teamCode.
func (r *ChainRepo) ListAnalyses(ctx context.Context, teamCode string) ([]model.AnalysisRecord, error) {
	const q = `
SELECT id, extracted_serial, analyst_name, date_disburse, analysis_notes, status, created_by, created_on
FROM analysis_records a
WHERE $1 = '' OR EXISTS (
    SELECT 1 FROM extraction_records e
    WHERE e.extracted_serial = a.extracted_serial AND e.team_code = $1)
ORDER BY id DESC`
	rows, err := r.db.Pool.Query(ctx, q, teamCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AnalysisRecord
	for rows.Next() {
		var rec model.AnalysisRecord
		if err := rows.Scan(&rec.ID, &rec.ExtractedSerial, &rec.AnalystName, &rec.DateDisburse,
			&rec.AnalysisNotes, &rec.Status, &rec.CreatedBy, &rec.CreatedOn); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanExtraction(row pgx.Row) (*model.ExtractionRecord, error) {
	var rec model.ExtractionRecord
	var copiesJSON []byte
	if err := row.Scan(&rec.ID, &rec.OriginalSerial, &rec.Unit, &rec.UnitSpace, &rec.TeamCode,
		&rec.DataDetails, &rec.DateExtractionStart, &rec.ExtractedSerial, &rec.ExtractedBy,
		&copiesJSON, &rec.DateReceiving, &rec.AssignedUser, &rec.CreatedBy, &rec.CreatedOn); err != nil {
		return nil, err
	}
	if len(copiesJSON) > 0 {
		if err := json.Unmarshal(copiesJSON, &rec.WorkingCopies); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}
