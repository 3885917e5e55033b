package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/dial-lab/dtrack/internal/errs"
	"github.com/dial-lab/dtrack/internal/model"
)

func TestChainRepo_CreateExtraction_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChainRepo(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM custody_records WHERE serial_no=\$1 FOR UPDATE`).
		WithArgs("SN001").
		WillReturnRows(pgxmock.NewRows([]string{"unit", "unit_space", "team_code", "data_details", "status"}).
			AddRow("4(1) Delhi", "2TB", "teamA", "details so far", model.StatusSealed))
	mock.ExpectQuery(`INSERT INTO extraction_records`).
		WithArgs("SN001", "4(1) Delhi", "2TB", "teamA", "details so far",
			(*time.Time)(nil), "SN001-X", "Cyint", []byte(`["WC1","WC2"]`),
			(*time.Time)(nil), "", "admin").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_on"}).AddRow(int64(1), now))
	mock.ExpectExec(`UPDATE custody_records SET status='in_extraction' WHERE serial_no=\$1 AND status='sealed'`).
		WithArgs("SN001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	rec, err := r.CreateExtraction(ctx, model.ExtractionInput{
		OriginalSerial:  "SN001",
		Vendor:          "Cyint",
		ExtractedSerial: "SN001-X",
		WorkingCopies:   []string{"WC1", "WC2"},
	}, "admin")
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.ID)
	require.Equal(t, "teamA", rec.TeamCode)
	require.Equal(t, "details so far", rec.DataDetails)
	require.Equal(t, []string{"WC1", "WC2"}, rec.WorkingCopies)
}

func TestChainRepo_CreateExtraction_NotSealed(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChainRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM custody_records WHERE serial_no=\$1 FOR UPDATE`).
		WithArgs("SN001").
		WillReturnRows(pgxmock.NewRows([]string{"unit", "unit_space", "team_code", "data_details", "status"}).
			AddRow("", "2TB", "teamA", "", model.StatusIssued))
	mock.ExpectRollback()

	_, err := r.CreateExtraction(context.Background(), model.ExtractionInput{
		OriginalSerial:  "SN001",
		Vendor:          "Cyint",
		ExtractedSerial: "SN001-X",
	}, "admin")
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestChainRepo_CreateExtraction_SourceMissing(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChainRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM custody_records WHERE serial_no=\$1 FOR UPDATE`).
		WithArgs("SN404").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := r.CreateExtraction(context.Background(), model.ExtractionInput{
		OriginalSerial:  "SN404",
		Vendor:          "Cyint",
		ExtractedSerial: "SN404-X",
	}, "admin")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestChainRepo_GetExtractionByOutput_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChainRepo(db)

	mock.ExpectQuery(`FROM extraction_records WHERE extracted_serial=\$1`).
		WithArgs("SN404-X").
		WillReturnError(pgx.ErrNoRows)
	_, err := r.GetExtractionByOutput(context.Background(), "SN404-X")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestChainRepo_CreateAnalysis(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChainRepo(db)
	now := time.Now()

	rec := &model.AnalysisRecord{
		ExtractedSerial: "SN001-X",
		AnalystName:     "Jane",
		AnalysisNotes:   "full timeline",
		Status:          model.AnalysisStatusInProgress,
		CreatedBy:       "admin",
	}
	mock.ExpectQuery(`INSERT INTO analysis_records`).
		WithArgs(rec.ExtractedSerial, rec.AnalystName, rec.DateDisburse, rec.AnalysisNotes, rec.Status, rec.CreatedBy).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_on"}).AddRow(int64(7), now))
	require.NoError(t, r.CreateAnalysis(context.Background(), rec))
	require.Equal(t, int64(7), rec.ID)
}

func TestChainRepo_ListAnalyses_TeamScoped(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewChainRepo(db)
	now := time.Now()

	mock.ExpectQuery(`FROM analysis_records a`).
		WithArgs("teamA").
		WillReturnRows(pgxmock.NewRows([]string{"id", "extracted_serial", "analyst_name", "date_disburse", "analysis_notes", "status", "created_by", "created_on"}).
			AddRow(int64(1), "SN001-X", "Jane", (*time.Time)(nil), "", model.AnalysisStatusInProgress, "admin", now))
	rows, err := r.ListAnalyses(context.Background(), "teamA")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Jane", rows[0].AnalystName)
}
