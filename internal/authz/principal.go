package authz

import "fmt"

// Principal is the acting identity. It is produced by the authentication
// boundary and treated as read-only here.
type Principal struct {
	ID   int64
	Role Role
}

// NewPrincipal builds a principal from the roles assigned in storage. Storage
// models roles as many-to-many but exactly one role must be assigned.
func NewPrincipal(id int64, assigned []Role) (Principal, error) {
	if len(assigned) != 1 {
		return Principal{}, fmt.Errorf("%w: user %d has %d roles", ErrInvariantViolation, id, len(assigned))
	}
	return Principal{ID: id, Role: assigned[0]}, nil
}

// Owns reports whether ownerID refers to the principal.
func (p Principal) Owns(ownerID int64) bool {
	return p.ID != 0 && p.ID == ownerID
}
