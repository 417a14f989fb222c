package storage

import "errors"

// Storage errors shared by every backend. All run artifacts are
// append-only: a run id or ledger key is written once and never updated,
// so a duplicate insert is always a caller bug, not a retry.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
