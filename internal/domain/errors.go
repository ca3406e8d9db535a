package domain

import "errors"

var (
	// ErrNotFound signals a lookup miss in the user store.
	ErrNotFound = errors.New("gateway: record not found")
	// ErrConflict signals a unique-constraint violation, typically the
	// losing side of a concurrent first-sight upsert race.
	ErrConflict = errors.New("gateway: persistence conflict")
	// ErrMissingCredential signals a request without a bearer token.
	ErrMissingCredential = errors.New("gateway: missing credential")
	// ErrInvalidCredential covers malformed, expired and unverifiable
	// tokens from every scheme.
	ErrInvalidCredential = errors.New("gateway: invalid credential")
	// ErrCodeMismatch signals a wrong or expired verification code.
	ErrCodeMismatch = errors.New("gateway: verification code mismatch")
)
