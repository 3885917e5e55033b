// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is the authority level of an account.
type Role string

// Account roles. A user owns a team; a subuser is a short-lived data-entry
// account under a parent user.
const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleSubuser Role = "subuser"
)

// Status is the custody state of a tracked device.
type Status string

// Custody statuses. Values outside this set round-trip verbatim and are
// never coerced to a default.
const (
	StatusAvailable    Status = "available"
	StatusIssued       Status = "issued"
	StatusSealed       Status = "sealed"
	StatusInExtraction Status = "in_extraction"
	StatusReturned     Status = "returned"
)

// Known reports whether s is one of the defined custody statuses.
func (s Status) Known() bool {
	switch s {
	case StatusAvailable, StatusIssued, StatusSealed, StatusInExtraction, StatusReturned:
		return true
	}
	return false
}

// Session identifies an authenticated caller. It is passed explicitly to
// every core operation; there is no ambient current-user state.
type Session struct {
	Username string
	Role     Role
	Parent   string // owning team for subuser sessions, empty otherwise
}

// IsAdmin reports whether the session carries admin authority.
func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

// Account is a stored login identity.
type Account struct {
	ID             uuid.UUID // PK
	Username       string    // unique; doubles as the team code for user accounts
	Credential     string    // hex(salt):hex(derived key), see internal/crypto
	Role           Role
	Approved       bool
	ValidTill      *time.Time // hard stop for subuser accounts (7 days)
	PasswordExpiry *time.Time // reset deadline for user/admin accounts (90 days)
	Parent         string     // parent team for subusers, empty otherwise
	CreatedAt      time.Time
}

// CustodyRecord is a tracked storage device and its chain-of-custody state.
// SerialNo is the natural key. DataDetails is an append-only journal: every
// mutating operation concatenates a timestamped entry, never replacing text.
type CustodyRecord struct {
	SerialNo        string
	Unit            string
	UnitSpace       string
	TeamCode        string // current holder (user account), empty when unassigned
	AssignedSubuser string // must belong to TeamCode if set
	PremiseName     string
	DateSearch      *time.Time
	DateSeized      *time.Time
	DataDetails     string
	Status          Status
	CreatedBy       string
	CreatedOn       time.Time
	BarcodeValue    string
}

// ExtractionRecord is an append-only snapshot taken when a sealed device is
// handed to a vendor. It references the source record by serial number value.
type ExtractionRecord struct {
	ID                  int64
	OriginalSerial      string
	Unit                string
	UnitSpace           string
	TeamCode            string
	DataDetails         string
	DateExtractionStart *time.Time
	ExtractedSerial     string // serial of the new extracted-data medium
	ExtractedBy         string // vendor name
	WorkingCopies       []string
	DateReceiving       *time.Time
	AssignedUser        string
	CreatedBy           string
	CreatedOn           time.Time
}

// AnalysisRecord is an append-only disbursement of an extracted medium to an
// analyst.
type AnalysisRecord struct {
	ID              int64
	ExtractedSerial string
	AnalystName     string
	DateDisburse    *time.Time
	AnalysisNotes   string
	Status          string // defaults to "in_progress"
	CreatedBy       string
	CreatedOn       time.Time
}

// AnalysisStatusInProgress is the initial status of a new analysis record.
const AnalysisStatusInProgress = "in_progress"

// LogEntry is one row of the append-only action trail.
type LogEntry struct {
	ID       int64
	Username string
	Action   string // free-text "verb:subject:detail"
	TS       time.Time
}

// Option types stored in the options lookup table.
const (
	OptionUnit   = "unit"
	OptionVendor = "vendor"
)

// Option is an admin-editable name under a type ("unit" or "vendor").
type Option struct {
	ID   int64
	Type string
	Name string
}

// CustodyFilter narrows custody record listings. Zero values mean "any".
type CustodyFilter struct {
	Status          Status
	TeamCode        string
	AssignedSubuser string
	Search          string // substring match on serial, premise, details
}

// DataEntry is a subuser's descriptive-field submission for an issued record.
type DataEntry struct {
	PremiseName string
	DateSearch  *time.Time
	DateSeized  *time.Time
	Details     string
}

// ExtractionInput collects the fields of a vendor handoff.
type ExtractionInput struct {
	OriginalSerial      string
	Vendor              string
	DateExtractionStart *time.Time
	DateReceiving       *time.Time
	ExtractedSerial     string
	WorkingCopies       []string
	AssignedUser        string // optional
}

// AnalysisInput collects the fields of an analyst disbursement.
type AnalysisInput struct {
	ExtractedSerial string
	AnalystName     string
	DateDisburse    *time.Time
	AnalysisNotes   string
}
