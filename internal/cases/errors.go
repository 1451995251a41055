package cases

import "errors"

// Error kinds surfaced to the transport boundary.
var (
	// ErrNotFound means no record exists for the given id.
	ErrNotFound = errors.New("case not found")

	// ErrUnauthorized means the caller is unauthenticated or not the owner.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput means malformed or out-of-enumeration data.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBackendUnavailable means the case store could not be reached or failed.
	ErrBackendUnavailable = errors.New("case store unavailable")

	// ErrConflict means a case with the same id already exists.
	ErrConflict = errors.New("case id already exists")

	// ErrReportingDisabled means no report drafter is configured.
	ErrReportingDisabled = errors.New("report drafting is not configured")
)
