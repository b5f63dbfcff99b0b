package authz

import "errors"

var (
	// ErrConfiguration marks an invalid role grant table. It is fatal at startup.
	ErrConfiguration = errors.New("authz: invalid configuration")
	// ErrInvariantViolation marks a principal that does not hold exactly one role.
	ErrInvariantViolation = errors.New("authz: principal invariant violated")
	// ErrResourceNotFound is returned by owner stores for missing rows.
	ErrResourceNotFound = errors.New("authz: resource not found")
	// ErrUnknownResource is returned when no owner store serves a resource.
	ErrUnknownResource = errors.New("authz: unknown resource")
)
