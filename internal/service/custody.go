package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dial-lab/dtrack/internal/errs"
	"github.com/dial-lab/dtrack/internal/model"
	"github.com/dial-lab/dtrack/internal/repository"
)

// CustodyService defines the custody state machine. Normal transitions go
// through the guarded operations below; AdminUpdate is the separate
// privileged escape hatch that bypasses the transition table.
type CustodyService interface {
	// Intake creates a record: status available, or issued when a holder is
	// named. Admin only.
	Intake(ctx context.Context, s model.Session, rec model.CustodyRecord, holder string) (*model.CustodyRecord, error)
	// AssignTeam issues an available record to a holder. Admin only.
	AssignTeam(ctx context.Context, s model.Session, serialNo, teamCode string) error
	// HolderBusy reports whether the team already holds an issued record.
	// A soft warning for intake/assignment callers; never blocks.
	HolderBusy(ctx context.Context, s model.Session, teamCode string) (bool, error)
	// AssignSubuser hands an issued record to one of the caller's subusers.
	AssignSubuser(ctx context.Context, s model.Session, serialNo, subuser, notes string) error
	// EnterData records descriptive fields on the caller's assigned record.
	EnterData(ctx context.Context, s model.Session, serialNo string, entry model.DataEntry) error
	// Seal marks data entry complete on the caller's issued record.
	Seal(ctx context.Context, s model.Session, serialNo, notes string) error
	// AdminUpdate freely overwrites any field, status included. Admin only.
	AdminUpdate(ctx context.Context, s model.Session, rec model.CustodyRecord) error
	// Get loads one record the caller is allowed to see.
	Get(ctx context.Context, s model.Session, serialNo string) (*model.CustodyRecord, error)
	// List returns records within the caller's scope matching the filter.
	List(ctx context.Context, s model.Session, f model.CustodyFilter) ([]model.CustodyRecord, error)
	// ExportAll returns every record, all columns. Admin only.
	ExportAll(ctx context.Context, s model.Session) ([]model.CustodyRecord, error)
}

type CustodyServiceImpl struct {
	records  repository.CustodyRepository
	accounts repository.AccountRepository
	audit    *Auditor
}

// NewCustodyService constructs CustodyService.
func NewCustodyService(records repository.CustodyRepository, accounts repository.AccountRepository, audit *Auditor) *CustodyServiceImpl {
	return &CustodyServiceImpl{records: records, accounts: accounts, audit: audit}
}

// Intake creates a custody record.
func (s *CustodyServiceImpl) Intake(ctx context.Context, sess model.Session, rec model.CustodyRecord, holder string) (*model.CustodyRecord, error) {
	if !sess.IsAdmin() {
		return nil, errs.ErrUnauthorized
	}
	if rec.SerialNo == "" {
		return nil, fmt.Errorf("%w: serial number required", errs.ErrValidation)
	}
	rec.TeamCode = holder
	rec.AssignedSubuser = ""
	rec.Status = model.StatusAvailable
	if holder != "" {
		if err := s.checkHolder(ctx, holder); err != nil {
			return nil, err
		}
		rec.Status = model.StatusIssued
	}
	rec.CreatedBy = sess.Username
	if rec.BarcodeValue == "" {
		rec.BarcodeValue = rec.SerialNo
	}
	if err := s.records.Create(ctx, &rec); err != nil {
		return nil, err
	}
	if holder != "" {
		s.audit.Record(ctx, sess.Username, "add_assign_hdd:"+rec.SerialNo+":"+holder)
	} else {
		s.audit.Record(ctx, sess.Username, "add_hdd:"+rec.SerialNo)
	}
	return &rec, nil
}

// AssignTeam issues an available record to a holder.
func (s *CustodyServiceImpl) AssignTeam(ctx context.Context, sess model.Session, serialNo, teamCode string) error {
	if !sess.IsAdmin() {
		return errs.ErrUnauthorized
	}
	if serialNo == "" || teamCode == "" {
		return fmt.Errorf("%w: serial number and team required", errs.ErrValidation)
	}
	if err := s.checkHolder(ctx, teamCode); err != nil {
		return err
	}
	if err := s.records.AssignTeam(ctx, serialNo, teamCode); err != nil {
		return err
	}
	s.audit.Record(ctx, sess.Username, "assign_hdd:"+serialNo+":"+teamCode)
	return nil
}

// HolderBusy reports whether the team already holds an issued record.
func (s *CustodyServiceImpl) HolderBusy(ctx context.Context, sess model.Session, teamCode string) (bool, error) {
	if !sess.IsAdmin() {
		return false, errs.ErrUnauthorized
	}
	return s.records.HolderHasIssued(ctx, teamCode)
}

// AssignSubuser hands an issued record of the calling team to a subuser.
func (s *CustodyServiceImpl) AssignSubuser(ctx context.Context, sess model.Session, serialNo, subuser, notes string) error {
	if sess.Role != model.RoleUser {
		return errs.ErrUnauthorized
	}
	if serialNo == "" || subuser == "" {
		return fmt.Errorf("%w: serial number and subuser required", errs.ErrValidation)
	}

	sub, err := s.accounts.GetByUsername(ctx, subuser)
	if err != nil {
		return err
	}
	if sub.Role != model.RoleSubuser || sub.Parent != sess.Username {
		return errs.ErrUnauthorized
	}

	rec, err := s.records.Get(ctx, serialNo)
	if err != nil {
		return err
	}
	if rec.TeamCode != sess.Username {
		return errs.ErrUnauthorized
	}
	if rec.Status != model.StatusIssued || rec.AssignedSubuser != "" {
		return errs.ErrConflict
	}

	note := fmt.Sprintf("\n[ASSIGNED TO SUBUSER %s by %s to %s]: %s", timestamp(), sess.Username, subuser, notes)
	if err := s.records.AssignSubuser(ctx, serialNo, sess.Username, subuser, note); err != nil {
		return err
	}
	s.audit.Record(ctx, sess.Username, "assign_subuser:"+serialNo+":"+subuser)
	return nil
}

// EnterData records descriptive fields on the subuser's assigned record.
// The detail journal only ever grows; the status stays issued.
func (s *CustodyServiceImpl) EnterData(ctx context.Context, sess model.Session, serialNo string, entry model.DataEntry) error {
	if sess.Role != model.RoleSubuser {
		return errs.ErrUnauthorized
	}
	if serialNo == "" || entry.PremiseName == "" || entry.Details == "" {
		return fmt.Errorf("%w: serial number, premise and details required", errs.ErrValidation)
	}

	rec, err := s.records.Get(ctx, serialNo)
	if err != nil {
		return err
	}
	if rec.TeamCode != sess.Parent || rec.AssignedSubuser != sess.Username || rec.Status != model.StatusIssued {
		return errs.ErrUnauthorized
	}

	note := fmt.Sprintf("\n[DATA ENTRY %s by %s]:\nPremise: %s\nSearch Date: %s\nSeized Date: %s\n\nData Details:\n%s",
		timestamp(), sess.Username, entry.PremiseName, dateString(entry.DateSearch), dateString(entry.DateSeized), entry.Details)
	if err := s.records.EnterData(ctx, serialNo, sess.Parent, sess.Username, entry, note); err != nil {
		return err
	}
	s.audit.Record(ctx, sess.Username, "enter_data:"+serialNo)
	return nil
}

// Seal marks the caller's issued record as sealed.
func (s *CustodyServiceImpl) Seal(ctx context.Context, sess model.Session, serialNo, notes string) error {
	if sess.Role != model.RoleUser {
		return errs.ErrUnauthorized
	}
	if serialNo == "" {
		return fmt.Errorf("%w: serial number required", errs.ErrValidation)
	}

	rec, err := s.records.Get(ctx, serialNo)
	if err != nil {
		return err
	}
	if rec.TeamCode != sess.Username {
		return errs.ErrUnauthorized
	}
	if rec.Status != model.StatusIssued {
		return errs.ErrConflict
	}

	note := fmt.Sprintf("\n[SEALED %s by %s]: %s", timestamp(), sess.Username, notes)
	if err := s.records.Seal(ctx, serialNo, sess.Username, note); err != nil {
		return err
	}
	s.audit.Record(ctx, sess.Username, "seal_hdd:"+serialNo)
	return nil
}

// AdminUpdate overwrites any field with no transition check.
func (s *CustodyServiceImpl) AdminUpdate(ctx context.Context, sess model.Session, rec model.CustodyRecord) error {
	if !sess.IsAdmin() {
		return errs.ErrUnauthorized
	}
	if rec.SerialNo == "" {
		return fmt.Errorf("%w: serial number required", errs.ErrValidation)
	}
	if err := s.records.AdminUpdate(ctx, &rec); err != nil {
		return err
	}
	s.audit.Record(ctx, sess.Username, "edit_record:"+rec.SerialNo)
	return nil
}

// Get loads one record within the caller's visibility.
func (s *CustodyServiceImpl) Get(ctx context.Context, sess model.Session, serialNo string) (*model.CustodyRecord, error) {
	rec, err := s.records.Get(ctx, serialNo)
	if err != nil {
		return nil, err
	}
	switch sess.Role {
	case model.RoleAdmin:
	case model.RoleUser:
		if rec.TeamCode != sess.Username {
			return nil, errs.ErrUnauthorized
		}
	case model.RoleSubuser:
		if rec.TeamCode != sess.Parent || rec.AssignedSubuser != sess.Username {
			return nil, errs.ErrUnauthorized
		}
	default:
		return nil, errs.ErrUnauthorized
	}
	return rec, nil
}

// List returns records in the caller's scope. Users are pinned to their own
// team, subusers to their own assignments.
func (s *CustodyServiceImpl) List(ctx context.Context, sess model.Session, f model.CustodyFilter) ([]model.CustodyRecord, error) {
	switch sess.Role {
	case model.RoleAdmin:
	case model.RoleUser:
		f.TeamCode = sess.Username
	case model.RoleSubuser:
		f.TeamCode = sess.Parent
		f.AssignedSubuser = sess.Username
	default:
		return nil, errs.ErrUnauthorized
	}
	return s.records.List(ctx, f)
}

// ExportAll returns the full custody table for external rendering.
func (s *CustodyServiceImpl) ExportAll(ctx context.Context, sess model.Session) ([]model.CustodyRecord, error) {
	if !sess.IsAdmin() {
		return nil, errs.ErrUnauthorized
	}
	return s.records.List(ctx, model.CustodyFilter{})
}

// checkHolder verifies that a holder name references an approved team.
func (s *CustodyServiceImpl) checkHolder(ctx context.Context, teamCode string) error {
	a, err := s.accounts.GetByUsername(ctx, teamCode)
	if err != nil {
		return err
	}
	if a.Role != model.RoleUser || !a.Approved {
		return fmt.Errorf("%w: holder must be an approved team account", errs.ErrValidation)
	}
	return nil
}

func timestamp() string { return time.Now().UTC().Format(time.RFC3339) }

func dateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
