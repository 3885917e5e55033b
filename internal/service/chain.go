package service

import (
	"context"
	"fmt"

	"github.com/dial-lab/dtrack/internal/errs"
	"github.com/dial-lab/dtrack/internal/model"
	"github.com/dial-lab/dtrack/internal/repository"
)

// ChainService defines the disbursement chain: vendor extraction and analyst
// handoff. Both operations are append-only; no update or delete is exposed.
type ChainService interface {
	// SendToExtraction hands a sealed record to a vendor. Admin only.
	SendToExtraction(ctx context.Context, s model.Session, in model.ExtractionInput) (*model.ExtractionRecord, error)
	// SendToAnalysis disburses an extracted medium to an analyst. Admin only.
	SendToAnalysis(ctx context.Context, s model.Session, in model.AnalysisInput) (*model.AnalysisRecord, error)
	// ListExtractions returns all extraction records. Admin only.
	ListExtractions(ctx context.Context, s model.Session) ([]model.ExtractionRecord, error)
	// ListAnalyses returns analysis records. Admins may name any team or
	// none; users are pinned to their own.
	ListAnalyses(ctx context.Context, s model.Session, teamCode string) ([]model.AnalysisRecord, error)
}

type ChainServiceImpl struct {
	chain repository.ChainRepository
	audit *Auditor
}

// NewChainService constructs ChainService.
func NewChainService(chain repository.ChainRepository, audit *Auditor) *ChainServiceImpl {
	return &ChainServiceImpl{chain: chain, audit: audit}
}

// SendToExtraction snapshots the sealed source and flips it to in_extraction.
func (s *ChainServiceImpl) SendToExtraction(ctx context.Context, sess model.Session, in model.ExtractionInput) (*model.ExtractionRecord, error) {
	if !sess.IsAdmin() {
		return nil, errs.ErrUnauthorized
	}
	if in.OriginalSerial == "" || in.Vendor == "" {
		return nil, fmt.Errorf("%w: source serial and vendor required", errs.ErrValidation)
	}
	rec, err := s.chain.CreateExtraction(ctx, in, sess.Username)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, sess.Username, "extraction_send:"+in.OriginalSerial+":"+in.Vendor)
	return rec, nil
}

// SendToAnalysis disburses an extracted medium to an analyst. The custody
// record is not touched; the chain beyond extraction is purely additive.
func (s *ChainServiceImpl) SendToAnalysis(ctx context.Context, sess model.Session, in model.AnalysisInput) (*model.AnalysisRecord, error) {
	if !sess.IsAdmin() {
		return nil, errs.ErrUnauthorized
	}
	if in.ExtractedSerial == "" || in.AnalystName == "" {
		return nil, fmt.Errorf("%w: extracted serial and analyst required", errs.ErrValidation)
	}
	if _, err := s.chain.GetExtractionByOutput(ctx, in.ExtractedSerial); err != nil {
		return nil, err
	}
	rec := &model.AnalysisRecord{
		ExtractedSerial: in.ExtractedSerial,
		AnalystName:     in.AnalystName,
		DateDisburse:    in.DateDisburse,
		AnalysisNotes:   in.AnalysisNotes,
		Status:          model.AnalysisStatusInProgress,
		CreatedBy:       sess.Username,
	}
	if err := s.chain.CreateAnalysis(ctx, rec); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, sess.Username, "analysis_disburse:"+in.ExtractedSerial+":"+in.AnalystName)
	return rec, nil
}

// ListExtractions returns all extraction records.
func (s *ChainServiceImpl) ListExtractions(ctx context.Context, sess model.Session) ([]model.ExtractionRecord, error) {
	if !sess.IsAdmin() {
		return nil, errs.ErrUnauthorized
	}
	return s.chain.ListExtractions(ctx)
}

// ListAnalyses returns analysis records scoped by team.
func (s *ChainServiceImpl) ListAnalyses(ctx context.Context, sess model.Session, teamCode string) ([]model.AnalysisRecord, error) {
	switch sess.Role {
	case model.RoleAdmin:
	case model.RoleUser:
		teamCode = sess.Username
	default:
		return nil, errs.ErrUnauthorized
	}
	return s.chain.ListAnalyses(ctx, teamCode)
}
