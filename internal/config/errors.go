package config

import "errors"

// Error kinds surfaced by parsing, validation and mutation. Callers match
// them with errors.Is.
var (
	// ErrDuplicate is returned for duplicate server names.
	ErrDuplicate = errors.New("duplicate entry")

	// ErrCapacity is returned when a bounded collection would overflow.
	ErrCapacity = errors.New("capacity exceeded")

	// ErrNotFound is returned when a key path names a server that does
	// not exist in the live configuration.
	ErrNotFound = errors.New("entry not found")

	// ErrUnknownKey is returned by get/set for a key that resolves to no
	// configuration field.
	ErrUnknownKey = errors.New("unknown configuration key")

	// ErrInvalidKey is returned by the key-path resolver for a malformed
	// dotted key string.
	ErrInvalidKey = errors.New("invalid configuration key")

	// ErrValidation is returned when a candidate configuration violates a
	// cross-field invariant.
	ErrValidation = errors.New("validation failed")
)
