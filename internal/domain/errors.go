package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Callers classify failures with errors.Is; everything else
// is a server-side failure.
var (
	// ErrValidation marks malformed or missing required input.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized marks a missing or incorrect credential. Surfaced
	// generically so it never leaks which part of the credential was wrong.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound marks an id with no stored record.
	ErrNotFound = errors.New("not found")

	// ErrExpired marks an id whose record exists but is past its retention
	// window. Distinct from ErrNotFound for user messaging.
	ErrExpired = errors.New("expired")

	// ErrAllocationExhausted marks an allocation that found no free id
	// within its retry budget. Nothing has been written; the whole
	// submission is safe to retry.
	ErrAllocationExhausted = errors.New("id allocation exhausted")

	// ErrAdminNotConfigured marks an admin operation on an instance with no
	// admin credential configured.
	ErrAdminNotConfigured = errors.New("admin functionality not configured")

	// ErrStoreUnavailable marks a failed backing store call. The coordinator
	// does not retry; retry policy belongs to the caller.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// StoreError wraps a backend failure so callers can classify it with
// errors.Is(err, ErrStoreUnavailable) while keeping the driver detail.
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, ErrStoreUnavailable)
}
