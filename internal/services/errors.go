package services

import "errors"

var (
	// ErrNotFound is returned when no invoice has the requested invoice number.
	ErrNotFound = errors.New("invoice not found")

	// ErrConflict is returned when an update keeps losing the revision check
	// against concurrent writers.
	ErrConflict = errors.New("invoice was modified concurrently")
)
