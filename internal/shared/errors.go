package shared

import "errors"

// Cross-package sentinels. Domain-specific errors live with their packages;
// these are the ones the session and auth plumbing need to agree on.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials covers every login failure so callers cannot
	// distinguish a missing account from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing is returned when no token accompanies a mutation.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch is returned when the token fails verification.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
