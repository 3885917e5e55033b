package service

import (
	"context"
	"strings"
	"time"

	"github.com/dial-lab/dtrack/internal/errs"
	"github.com/dial-lab/dtrack/internal/limiter"
	"github.com/dial-lab/dtrack/internal/model"
	"github.com/dial-lab/dtrack/internal/repository"
)

// ---- accounts ----

type fakeAccounts struct {
	byName map[string]*model.Account
}

var _ repository.AccountRepository = (*fakeAccounts)(nil)

func (f *fakeAccounts) Create(_ context.Context, a *model.Account) error {
	if f.byName == nil {
		f.byName = map[string]*model.Account{}
	}
	if _, exists := f.byName[a.Username]; exists {
		return errs.ErrConflict
	}
	cpy := *a
	f.byName[a.Username] = &cpy
	return nil
}

func (f *fakeAccounts) GetByUsername(_ context.Context, username string) (*model.Account, error) {
	a, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeAccounts) SetApproved(_ context.Context, username string, approved bool) error {
	a, ok := f.byName[username]
	if !ok {
		return errs.ErrNotFound
	}
	a.Approved = approved
	return nil
}

func (f *fakeAccounts) SetCredential(_ context.Context, username, credential string, expiry time.Time) error {
	a, ok := f.byName[username]
	if !ok {
		return errs.ErrNotFound
	}
	a.Credential = credential
	a.PasswordExpiry = &expiry
	return nil
}

func (f *fakeAccounts) List(_ context.Context) ([]model.Account, error) {
	var out []model.Account
	for _, a := range f.byName {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeAccounts) ListSubusers(_ context.Context, parent string) ([]model.Account, error) {
	var out []model.Account
	for _, a := range f.byName {
		if a.Role == model.RoleSubuser && a.Parent == parent {
			out = append(out, *a)
		}
	}
	return out, nil
}

// ---- custody records ----

// fakeCustody mirrors the guarded-update semantics of the Postgres repo.
type fakeCustody struct {
	bySerial map[string]*model.CustodyRecord
}

var _ repository.CustodyRepository = (*fakeCustody)(nil)

func newFakeCustody() *fakeCustody {
	return &fakeCustody{bySerial: map[string]*model.CustodyRecord{}}
}

func (f *fakeCustody) Create(_ context.Context, rec *model.CustodyRecord) error {
	if _, exists := f.bySerial[rec.SerialNo]; exists {
		return errs.ErrConflict
	}
	cpy := *rec
	if cpy.CreatedOn.IsZero() {
		cpy.CreatedOn = time.Now()
	}
	f.bySerial[rec.SerialNo] = &cpy
	return nil
}

func (f *fakeCustody) Get(_ context.Context, serialNo string) (*model.CustodyRecord, error) {
	rec, ok := f.bySerial[serialNo]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *rec
	return &c, nil
}

func (f *fakeCustody) AssignTeam(_ context.Context, serialNo, teamCode string) error {
	rec, ok := f.bySerial[serialNo]
	if !ok {
		return errs.ErrNotFound
	}
	if rec.Status != model.StatusAvailable || rec.TeamCode != "" {
		return errs.ErrConflict
	}
	rec.TeamCode = teamCode
	rec.Status = model.StatusIssued
	return nil
}

func (f *fakeCustody) AssignSubuser(_ context.Context, serialNo, teamCode, subuser, note string) error {
	rec, ok := f.bySerial[serialNo]
	if !ok {
		return errs.ErrNotFound
	}
	if rec.TeamCode != teamCode || rec.Status != model.StatusIssued || rec.AssignedSubuser != "" {
		return errs.ErrConflict
	}
	rec.AssignedSubuser = subuser
	rec.DataDetails += note
	return nil
}

func (f *fakeCustody) EnterData(_ context.Context, serialNo, teamCode, subuser string, entry model.DataEntry, note string) error {
	rec, ok := f.bySerial[serialNo]
	if !ok {
		return errs.ErrNotFound
	}
	if rec.TeamCode != teamCode || rec.AssignedSubuser != subuser || rec.Status != model.StatusIssued {
		return errs.ErrConflict
	}
	rec.PremiseName = entry.PremiseName
	rec.DateSearch = entry.DateSearch
	rec.DateSeized = entry.DateSeized
	rec.DataDetails += note
	return nil
}

func (f *fakeCustody) Seal(_ context.Context, serialNo, teamCode, note string) error {
	rec, ok := f.bySerial[serialNo]
	if !ok {
		return errs.ErrNotFound
	}
	if rec.TeamCode != teamCode || rec.Status != model.StatusIssued {
		return errs.ErrConflict
	}
	rec.Status = model.StatusSealed
	rec.DataDetails += note
	return nil
}

func (f *fakeCustody) AdminUpdate(_ context.Context, rec *model.CustodyRecord) error {
	cur, ok := f.bySerial[rec.SerialNo]
	if !ok {
		return errs.ErrNotFound
	}
	cpy := *rec
	cpy.CreatedBy = cur.CreatedBy
	cpy.CreatedOn = cur.CreatedOn
	f.bySerial[rec.SerialNo] = &cpy
	return nil
}

func (f *fakeCustody) List(_ context.Context, flt model.CustodyFilter) ([]model.CustodyRecord, error) {
	var out []model.CustodyRecord
	for _, rec := range f.bySerial {
		if flt.Status != "" && rec.Status != flt.Status {
			continue
		}
		if flt.TeamCode != "" && rec.TeamCode != flt.TeamCode {
			continue
		}
		if flt.AssignedSubuser != "" && rec.AssignedSubuser != flt.AssignedSubuser {
			continue
		}
		if flt.Search != "" &&
			!strings.Contains(rec.SerialNo, flt.Search) &&
			!strings.Contains(rec.PremiseName, flt.Search) &&
			!strings.Contains(rec.DataDetails, flt.Search) {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeCustody) HolderHasIssued(_ context.Context, teamCode string) (bool, error) {
	for _, rec := range f.bySerial {
		if rec.TeamCode == teamCode && rec.Status == model.StatusIssued {
			return true, nil
		}
	}
	return false, nil
}

// ---- disbursement chain ----

type fakeChain struct {
	custody     *fakeCustody
	extractions []model.ExtractionRecord
	analyses    []model.AnalysisRecord
}

var _ repository.ChainRepository = (*fakeChain)(nil)

func (f *fakeChain) CreateExtraction(_ context.Context, in model.ExtractionInput, createdBy string) (*model.ExtractionRecord, error) {
	src, ok := f.custody.bySerial[in.OriginalSerial]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if src.Status != model.StatusSealed {
		return nil, errs.ErrConflict
	}
	rec := model.ExtractionRecord{
		ID:                  int64(len(f.extractions) + 1),
		OriginalSerial:      in.OriginalSerial,
		Unit:                src.Unit,
		UnitSpace:           src.UnitSpace,
		TeamCode:            src.TeamCode,
		DataDetails:         src.DataDetails,
		DateExtractionStart: in.DateExtractionStart,
		ExtractedSerial:     in.ExtractedSerial,
		ExtractedBy:         in.Vendor,
		WorkingCopies:       in.WorkingCopies,
		DateReceiving:       in.DateReceiving,
		AssignedUser:        in.AssignedUser,
		CreatedBy:           createdBy,
		CreatedOn:           time.Now(),
	}
	f.extractions = append(f.extractions, rec)
	src.Status = model.StatusInExtraction
	c := rec
	return &c, nil
}

func (f *fakeChain) GetExtractionByOutput(_ context.Context, extractedSerial string) (*model.ExtractionRecord, error) {
	for i := len(f.extractions) - 1; i >= 0; i-- {
		if f.extractions[i].ExtractedSerial == extractedSerial {
			c := f.extractions[i]
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeChain) CreateAnalysis(_ context.Context, rec *model.AnalysisRecord) error {
	rec.ID = int64(len(f.analyses) + 1)
	rec.CreatedOn = time.Now()
	f.analyses = append(f.analyses, *rec)
	return nil
}

func (f *fakeChain) ListExtractions(_ context.Context) ([]model.ExtractionRecord, error) {
	out := make([]model.ExtractionRecord, len(f.extractions))
	copy(out, f.extractions)
	return out, nil
}

func (f *fakeChain) ListAnalyses(_ context.Context, teamCode string) ([]model.AnalysisRecord, error) {
	var out []model.AnalysisRecord
	for _, a := range f.analyses {
		if teamCode != "" {
			found := false
			for _, e := range f.extractions {
				if e.ExtractedSerial == a.ExtractedSerial && e.TeamCode == teamCode {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// ---- limiter ----

type fakeLimiter struct {
	blocked     bool
	failBlocked bool

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	l.allowCalls++
	return !l.blocked, 0, nil
}

func (l *fakeLimiter) Success(context.Context, string) error {
	l.successCalls++
	return nil
}

func (l *fakeLimiter) Failure(context.Context, string) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, nil
}

// ---- audit ----

type fakeAudit struct {
	actions []string
	entries []model.LogEntry
	err     error
}

var _ repository.AuditRepository = (*fakeAudit)(nil)

func (f *fakeAudit) Append(_ context.Context, username, action string) error {
	if f.err != nil {
		return f.err
	}
	f.actions = append(f.actions, username+" "+action)
	f.entries = append(f.entries, model.LogEntry{
		ID:       int64(len(f.entries) + 1),
		Username: username,
		Action:   action,
		TS:       time.Now(),
	})
	return nil
}

func (f *fakeAudit) List(_ context.Context, limit int) ([]model.LogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.LogEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.entries[i])
	}
	return out, nil
}

// ---- options ----

type fakeOptions struct {
	names map[string][]string
}

var _ repository.OptionRepository = (*fakeOptions)(nil)

func (f *fakeOptions) List(_ context.Context, typ string) ([]string, error) {
	out := make([]string, len(f.names[typ]))
	copy(out, f.names[typ])
	return out, nil
}

func (f *fakeOptions) Add(_ context.Context, typ, name string) error {
	for _, n := range f.names[typ] {
		if n == name {
			return errs.ErrConflict
		}
	}
	if f.names == nil {
		f.names = map[string][]string{}
	}
	f.names[typ] = append(f.names[typ], name)
	return nil
}

func (f *fakeOptions) Remove(_ context.Context, typ, name string) error {
	for i, n := range f.names[typ] {
		if n == name {
			f.names[typ] = append(f.names[typ][:i], f.names[typ][i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}
