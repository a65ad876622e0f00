package storage

import "errors"

var (
	// ErrNotFound is returned when a user, position or fill does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an ID already exists, and by
	// PositionStore.Insert when the user already holds a live position in
	// the same mint. Fills are append-only.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when a record is missing required fields.
	ErrInvalidInput = errors.New("invalid input")
)
