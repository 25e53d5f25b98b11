// Package apperr holds the sentinel errors shared across layers. Callers wrap
// them with context and match with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	// ErrNotConfigured is returned when a feature is missing required settings.
	ErrNotConfigured = errors.New("not configured")
)
