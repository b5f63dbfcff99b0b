package authz

import (
	"context"
	"errors"
	"fmt"
)

// OwnerStore fetches the creator of a row. Implementations return
// ErrResourceNotFound when the row does not exist.
type OwnerStore interface {
	OwnerOf(ctx context.Context, resource Resource, id int64) (int64, error)
}

// StoreSet routes ownership lookups to the store serving each resource.
type StoreSet map[Resource]OwnerStore

// OwnerOf implements OwnerStore.
func (s StoreSet) OwnerOf(ctx context.Context, resource Resource, id int64) (int64, error) {
	store, ok := s[resource]
	if !ok || store == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	return store.OwnerOf(ctx, resource, id)
}

// Ownership is the relation between a principal and a row.
type Ownership int

const (
	// Missing means the row does not exist.
	Missing Ownership = iota
	// NotOwned means the row exists and another principal created it.
	NotOwned
	// Owned means the principal created the row.
	Owned
)

func (o Ownership) String() string {
	switch o {
	case Owned:
		return "owned"
	case NotOwned:
		return "not_owned"
	default:
		return "missing"
	}
}

// Resolver answers ownership questions. Results are never cached: each call
// performs exactly one store lookup.
type Resolver struct {
	store OwnerStore
}

// NewResolver constructs a Resolver over store.
func NewResolver(store OwnerStore) *Resolver {
	return &Resolver{store: store}
}

// Ownership classifies the relation between p and the row. Only storage
// failures are returned as errors.
func (r *Resolver) Ownership(ctx context.Context, p Principal, resource Resource, id int64) (Ownership, error) {
	if r == nil || r.store == nil {
		return Missing, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	ownerID, err := r.store.OwnerOf(ctx, resource, id)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return Missing, nil
		}
		return Missing, fmt.Errorf("authz: owner of %s %d: %w", resource, id, err)
	}
	if p.Owns(ownerID) {
		return Owned, nil
	}
	return NotOwned, nil
}

// IsOwner reports whether p created the row. Missing rows are not owned.
func (r *Resolver) IsOwner(ctx context.Context, p Principal, resource Resource, id int64) (bool, error) {
	o, err := r.Ownership(ctx, p, resource, id)
	if err != nil {
		return false, err
	}
	return o == Owned, nil
}
