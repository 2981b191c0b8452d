package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAdminMismatch is returned when a store already belongs to a
	// different administrator than the one configured.
	ErrAdminMismatch = errors.New("persisted admin differs from configured admin")
)
