package repository

import "errors"

var (
	// ErrNotFound is returned when no credential matches the lookup key.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when the email uniqueness constraint is violated.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrDuplicateUsername is returned when the username uniqueness constraint is violated.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrSessionNotFound is returned when no refresh-token hash is stored for a subject.
	ErrSessionNotFound = errors.New("session not found")
)
