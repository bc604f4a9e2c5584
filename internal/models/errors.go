package models

import "errors"

// Error kinds returned by the core services. Callers match them with errors.Is;
// services wrap them with context via fmt.Errorf("...: %w").
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFound               = errors.New("not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrAlreadyProcessed       = errors.New("already processed")
	ErrConflict               = errors.New("conflict")

	// ErrUnavailable marks infrastructure failures (storage unreachable,
	// transaction could not be started). Safe to retry.
	ErrUnavailable = errors.New("storage unavailable")
)
