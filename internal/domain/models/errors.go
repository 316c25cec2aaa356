package models

import "errors"

// Domain error taxonomy. Data-unavailable conditions (no open
// position, missing snapshot, no performance aggregate) are not
// errors; providers return nil for those.
var (
	// ErrNotFound: the referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict: a lifecycle transition whose precondition no longer
	// holds (another writer changed the status first, or the record is
	// terminal). Callers may re-fetch and retry.
	ErrConflict = errors.New("status conflict")
)
