package authz

import "context"

// Observer is notified of every decision. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveDecision(perm Permission, d Decision)
}

// Engine evaluates permissions against the role table. It holds no mutable
// state and may be shared across goroutines.
type Engine struct {
	policy   *Policy
	resolver *Resolver
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver attaches a decision observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine constructs an Engine. resolver may be nil when only blanket
// checks are needed.
func NewEngine(policy *Policy, resolver *Resolver, opts ...Option) *Engine {
	e := &Engine{policy: policy, resolver: resolver}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy exposes the role table, for rendering UI affordances.
func (e *Engine) Policy() *Policy { return e.policy }

// Resolver exposes the ownership resolver.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// PermissionsFor returns the permissions held by role.
func (e *Engine) PermissionsFor(role Role) []Permission {
	return e.policy.PermissionsFor(role)
}

// Can reports whether p holds perm. Unknown roles and permissions outside the
// catalog never pass.
func (e *Engine) Can(p Principal, perm Permission) bool {
	if e == nil || !p.Role.Valid() || !InCatalog(perm) {
		return false
	}
	return e.policy.Holds(p.Role, perm)
}

// CanOrFail returns Allow when p holds perm and Deny with DeniedReason
// otherwise.
func (e *Engine) CanOrFail(p Principal, perm Permission) Decision {
	d := Deny(DeniedReason)
	if e.Can(p, perm) {
		d = Allow()
	}
	e.observe(perm, d)
	return d
}

// CanAny reports whether p holds at least one of perms.
func (e *Engine) CanAny(p Principal, perms ...Permission) bool {
	for _, perm := range perms {
		if e.Can(p, perm) {
			return true
		}
	}
	return false
}

// Authorize decides a single-row action. The global variant of the action
// allows any existing row; the own variant allows rows created by p. The
// blanket check runs before any lookup so principals without either variant
// never touch storage. A missing row yields OutcomeNotFound. Errors are
// storage failures only.
func (e *Engine) Authorize(ctx context.Context, p Principal, resource Resource, action Action, id int64) (Decision, error) {
	globalPerm, hasGlobalPerm := Lookup(resource, action, ScopeGlobal)
	ownPerm, hasOwnPerm := Lookup(resource, action, ScopeOwn)
	holdsGlobal := hasGlobalPerm && e.Can(p, globalPerm)
	holdsOwn := hasOwnPerm && e.Can(p, ownPerm)

	checked := globalPerm
	if !holdsGlobal && holdsOwn {
		checked = ownPerm
	}
	if !holdsGlobal && !holdsOwn {
		d := Deny(DeniedReason)
		e.observe(checked, d)
		return d, nil
	}

	ownership, err := e.resolver.Ownership(ctx, p, resource, id)
	if err != nil {
		return Deny(DeniedReason), err
	}
	var d Decision
	switch {
	case ownership == Missing:
		d = NotFound()
	case holdsGlobal:
		d = Allow()
	case ownership == Owned:
		d = Allow()
	default:
		d = Deny(DeniedReason)
	}
	e.observe(checked, d)
	return d, nil
}

// Check decides perm exactly as named against a single row. A global
// permission must be held; an own permission must be held and the row owned
// by p. Unlike Authorize, holding the other variant of the action does not
// count. The blanket check runs before any lookup.
func (e *Engine) Check(ctx context.Context, p Principal, perm Permission, id int64) (Decision, error) {
	if !e.Can(p, perm) {
		d := Deny(DeniedReason)
		e.observe(perm, d)
		return d, nil
	}
	ownership, err := e.resolver.Ownership(ctx, p, perm.Resource, id)
	if err != nil {
		return Deny(DeniedReason), err
	}
	var d Decision
	switch {
	case ownership == Missing:
		d = NotFound()
	case !perm.Own(), ownership == Owned:
		d = Allow()
	default:
		d = Deny(DeniedReason)
	}
	e.observe(perm, d)
	return d, nil
}

// IsOwner reports whether p created the row.
func (e *Engine) IsOwner(ctx context.Context, p Principal, resource Resource, id int64) (bool, error) {
	return e.resolver.IsOwner(ctx, p, resource, id)
}

func (e *Engine) observe(perm Permission, d Decision) {
	if e == nil || e.observer == nil {
		return
	}
	e.observer.ObserveDecision(perm, d)
}
