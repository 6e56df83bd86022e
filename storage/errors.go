package storage

import "errors"

// Storage error constants
var (
	// ErrAlertNotFound is returned when an alert is not found
	ErrAlertNotFound = errors.New("alert not found")

	// ErrEventNotFound is returned when an event is not found
	ErrEventNotFound = errors.New("event not found")

	// ErrConflict is returned when a version-checked alert update loses an
	// optimistic-concurrency race. Callers re-read and retry once.
	ErrConflict = errors.New("alert version conflict")
)
