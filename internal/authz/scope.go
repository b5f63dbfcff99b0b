package authz

// Columns used to restrict rows per resource.
const (
	UsersOwnerColumn   = "created_by"
	JobsOwnerColumn    = "user_id"
	JobsAssigneeColumn = "recruiter_id"
)

type scopeKind int

const (
	scopeHidden scopeKind = iota
	scopeAll
	scopeColumn
)

type scopeRule struct {
	kind   scopeKind
	column string
}

var scopeTable = map[Resource]map[Role]scopeRule{
	ResourceUsers: {
		RoleAdmin:     {kind: scopeAll},
		RoleHRManager: {kind: scopeColumn, column: UsersOwnerColumn},
		RoleRecruiter: {kind: scopeHidden},
		RoleApplicant: {kind: scopeHidden},
	},
	ResourceJobs: {
		RoleAdmin:     {kind: scopeAll},
		RoleHRManager: {kind: scopeColumn, column: JobsOwnerColumn},
		RoleRecruiter: {kind: scopeColumn, column: JobsAssigneeColumn},
		RoleApplicant: {kind: scopeAll},
	},
}

// ScopeQuery narrows q to the rows p may see. It is pure, idempotent and only
// adds conjuncts, so it commutes with any other filter. Unknown roles and
// resources are narrowed to nothing.
func ScopeQuery(p Principal, q Query) Query {
	rule, ok := scopeTable[q.Resource()][p.Role]
	if !ok {
		return q.Where(None())
	}
	switch rule.kind {
	case scopeAll:
		return q
	case scopeColumn:
		return q.Where(Eq(rule.column, p.ID))
	default:
		return q.Where(None())
	}
}

// Scope narrows q to the rows p may see.
func (e *Engine) Scope(p Principal, q Query) Query {
	return ScopeQuery(p, q)
}

// ModuleHidden reports whether the scope for p hides the whole resource.
func ModuleHidden(p Principal, resource Resource) bool {
	return ScopeQuery(p, NewQuery(resource)).Empty()
}
