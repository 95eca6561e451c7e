package domain

import "errors"

// Pipeline errors. All are fatal to a run.
var (
	// ErrMalformedAmount is returned when amountUSD is not a non-negative number.
	ErrMalformedAmount = errors.New("malformed amount")

	// ErrMalformedTimestamp is returned when timestamp is not integer epoch seconds.
	ErrMalformedTimestamp = errors.New("malformed timestamp")

	// ErrMissingField is returned when a required (possibly nested) field is absent.
	ErrMissingField = errors.New("missing field")

	// ErrInvalidDocument is returned when an input document is not valid JSON.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrNoDeposits is returned when the inputs contain no deposits at all.
	ErrNoDeposits = errors.New("no deposits")

	// ErrInsufficientClassSamples is returned when a class has fewer members
	// than the requested number of stratified folds.
	ErrInsufficientClassSamples = errors.New("insufficient class samples for stratified split")
)
