// Package storage defines persistence interfaces for scoring runs.
// Every store is append-only: rows of a run are written once and never updated.
package storage

import "errors"

var (
	// ErrNotFound is returned when a run, score or feature row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a run id or (run_id, account_id) pair
	// was already written, including twice within one batch.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned for nil records, empty keys or a negative limit.
	ErrInvalidInput = errors.New("invalid input")
)
