package server

import "errors"

// ErrInvalidInput is returned when a required field is missing or malformed.
var ErrInvalidInput = errors.New("invalid input")

// ErrNotFound is returned when no record matches the given key.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness constraint,
// whether caught by an advisory pre-check or by the storage-level unique index.
var ErrConflict = errors.New("conflict")
