// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested serial number or username does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a duplicate identifier or an unmet transition precondition.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized indicates the caller's role lacks permission for the target record or action.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation indicates a missing or malformed required field.
	ErrValidation = errors.New("validation failed")

	// ErrPendingApproval indicates the account exists but has not been approved by an admin.
	ErrPendingApproval = errors.New("account pending approval")

	// ErrPasswordExpired indicates the account password passed its 90-day deadline; a reset is required.
	ErrPasswordExpired = errors.New("password expired")

	// ErrAccountExpired indicates a subuser account passed its validity deadline.
	ErrAccountExpired = errors.New("account expired")

	// ErrRateLimited indicates temporary login lock due to repeated failures.
	ErrRateLimited = errors.New("rate limited")
)
