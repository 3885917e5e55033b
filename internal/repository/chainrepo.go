package repository

import (
	"context"

	"github.com/dial-lab/dtrack/internal/model"
)

// ChainRepository provides append-only access to the disbursement chain.
// Extraction and analysis rows are never updated or deleted.
type ChainRepository interface {
	// CreateExtraction snapshots the sealed source record, inserts the
	// extraction row, and flips the source to in_extraction in one
	// transaction. Missing source fails with ErrNotFound, a source that is
	// not sealed with ErrConflict.
	CreateExtraction(ctx context.Context, in model.ExtractionInput, createdBy string) (*model.ExtractionRecord, error)
	// GetExtractionByOutput loads the extraction that produced the given
	// extracted-data serial.
	GetExtractionByOutput(ctx context.Context, extractedSerial string) (*model.ExtractionRecord, error)
	// CreateAnalysis inserts an analysis row.
	CreateAnalysis(ctx context.Context, rec *model.AnalysisRecord) error
	// ListExtractions returns extraction rows, newest first.
	ListExtractions(ctx context.Context) ([]model.ExtractionRecord, error)
	// ListAnalyses returns analysis rows, newest first. A non-empty team
	// restricts to extractions whose snapshot holder matches.
	ListAnalyses(ctx context.Context, teamCode string) ([]model.AnalysisRecord, error)
}
