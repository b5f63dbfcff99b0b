package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionStoreUnavailable signals that the session backend could not be reached.
	ErrSessionStoreUnavailable = errors.New("session store unavailable")
)
