// Package authz implements the static role based permission model: the
// permission catalog, the role grants, the decision engine, ownership
// resolution and access scoped queries.
package authz

// CatalogVersion identifies the revision of the permission catalog. Adding or
// removing a permission is a catalog change and bumps the version.
const CatalogVersion = 1

// Resource names a module whose rows can be protected.
type Resource string

// Resources known to the catalog.
const (
	ResourceUsers Resource = "users"
	ResourceJobs  Resource = "jobs"
)

// Action is the operation a permission grants on a resource.
type Action string

// Actions known to the catalog.
const (
	ActionView     Action = "view"
	ActionCreate   Action = "create"
	ActionRead     Action = "read"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionStatus   Action = "status"
	ActionDownload Action = "download"
)

// Scope restricts a permission to every row or to rows the principal owns.
type Scope string

// Scopes known to the catalog.
const (
	ScopeGlobal Scope = "global"
	ScopeOwn    Scope = "own"
)

// Permission is an atomic capability composed from its kind. The zero value
// is not a catalog member.
type Permission struct {
	Resource Resource
	Action   Action
	Scope    Scope
}

// Name returns the stable identifier used on the wire and in storage.
func (p Permission) Name() string {
	switch {
	case p.Action == ActionStatus:
		return "update_" + string(p.Resource) + "_status"
	case p.Scope == ScopeOwn:
		return string(p.Action) + "_own_" + string(p.Resource)
	default:
		return string(p.Action) + "_" + string(p.Resource)
	}
}

func (p Permission) String() string { return p.Name() }

// Own reports whether the permission only applies to owned rows.
func (p Permission) Own() bool { return p.Scope == ScopeOwn }

func global(r Resource, a Action) Permission { return Permission{Resource: r, Action: a, Scope: ScopeGlobal} }
func own(r Resource, a Action) Permission { return Permission{Resource: r, Action: a, Scope: ScopeOwn} }

// Users permissions.
var (
	ViewUsers        = global(ResourceUsers, ActionView)
	CreateUsers      = global(ResourceUsers, ActionCreate)
	ReadUsers        = global(ResourceUsers, ActionRead)
	ReadOwnUsers     = own(ResourceUsers, ActionRead)
	UpdateUsers      = global(ResourceUsers, ActionUpdate)
	UpdateOwnUsers   = own(ResourceUsers, ActionUpdate)
	DeleteUsers      = global(ResourceUsers, ActionDelete)
	DeleteOwnUsers   = own(ResourceUsers, ActionDelete)
	DownloadUsers    = global(ResourceUsers, ActionDownload)
	DownloadOwnUsers = own(ResourceUsers, ActionDownload)
)

// Jobs permissions.
var (
	ViewJobs         = global(ResourceJobs, ActionView)
	CreateJobs       = global(ResourceJobs, ActionCreate)
	ReadJobs         = global(ResourceJobs, ActionRead)
	ReadOwnJobs      = own(ResourceJobs, ActionRead)
	UpdateJobs       = global(ResourceJobs, ActionUpdate)
	UpdateOwnJobs    = own(ResourceJobs, ActionUpdate)
	UpdateJobsStatus = global(ResourceJobs, ActionStatus)
	DeleteJobs       = global(ResourceJobs, ActionDelete)
	DeleteOwnJobs    = own(ResourceJobs, ActionDelete)
)

var catalog = []Permission{
	ViewUsers,
	CreateUsers,
	ReadUsers,
	ReadOwnUsers,
	UpdateUsers,
	UpdateOwnUsers,
	DeleteUsers,
	DeleteOwnUsers,
	DownloadUsers,
	DownloadOwnUsers,

	ViewJobs,
	CreateJobs,
	ReadJobs,
	ReadOwnJobs,
	UpdateJobs,
	UpdateOwnJobs,
	UpdateJobsStatus,
	DeleteJobs,
	DeleteOwnJobs,
}

var catalogByName = func() map[string]Permission {
	m := make(map[string]Permission, len(catalog))
	for _, p := range catalog {
		m[p.Name()] = p
	}
	return m
}()

// AllPermissions returns the catalog in declaration order.
func AllPermissions() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

var catalogSet = func() map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(catalog))
	for _, p := range catalog {
		m[p] = struct{}{}
	}
	return m
}()

// InCatalog reports whether p is a defined permission.
func InCatalog(p Permission) bool {
	_, ok := catalogSet[p]
	return ok
}

// LookupPermission resolves an identifier to its catalog entry.
func LookupPermission(name string) (Permission, bool) {
	p, ok := catalogByName[name]
	return p, ok
}

// Lookup returns the catalog permission for a resource/action/scope triple.
func Lookup(r Resource, a Action, s Scope) (Permission, bool) {
	p := Permission{Resource: r, Action: a, Scope: s}
	if !InCatalog(p) {
		return Permission{}, false
	}
	return p, true
}

// Role is the single role held by a principal.
type Role string

// Roles known to the catalog.
const (
	RoleAdmin     Role = "admin"
	RoleHRManager Role = "hr_manager"
	RoleRecruiter Role = "recruiter"
	RoleApplicant Role = "applicant"
)

var roles = []Role{RoleAdmin, RoleHRManager, RoleRecruiter, RoleApplicant}

// AllRoles returns every catalog role.
func AllRoles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// Valid reports whether r is a catalog role.
func (r Role) Valid() bool {
	for _, known := range roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole resolves a role name. Unknown names return false.
func ParseRole(name string) (Role, bool) {
	r := Role(name)
	return r, r.Valid()
}
