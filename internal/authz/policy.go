package authz

import (
	"errors"
	"fmt"
)

// Grants maps each role to the ordered permissions it holds.
type Grants map[Role][]Permission

// DefaultGrants returns the role table used by the panel.
func DefaultGrants() Grants {
	return Grants{
		RoleAdmin: {
			ViewUsers,
			CreateUsers,
			ReadUsers,
			UpdateUsers,
			DeleteUsers,
			DownloadUsers,
			ViewJobs,
			CreateJobs,
			ReadJobs,
			UpdateJobs,
			UpdateJobsStatus,
			DeleteJobs,
		},
		RoleHRManager: {
			ViewUsers,
			CreateUsers,
			ReadOwnUsers,
			UpdateOwnUsers,
			DeleteOwnUsers,
			DownloadOwnUsers,
			ViewJobs,
			CreateJobs,
			ReadOwnJobs,
			UpdateOwnJobs,
			DeleteOwnJobs,
		},
		RoleRecruiter: {
			ViewJobs,
			ReadJobs,
			UpdateJobsStatus,
		},
		RoleApplicant: {
			ViewJobs,
			ReadJobs,
		},
	}
}

type permissionSet struct {
	ordered []Permission
	index   map[Permission]struct{}
}

// Policy is the validated, immutable role table. It is safe for concurrent
// reads without synchronisation.
type Policy struct {
	sets map[Role]permissionSet
}

// NewPolicy validates grants against the catalog and freezes them.
func NewPolicy(grants Grants) (*Policy, error) {
	var errs []error
	for _, role := range roles {
		if _, ok := grants[role]; !ok {
			errs = append(errs, fmt.Errorf("%w: role %q has no entry", ErrConfiguration, role))
		}
	}
	sets := make(map[Role]permissionSet, len(grants))
	for role, perms := range grants {
		if !role.Valid() {
			errs = append(errs, fmt.Errorf("%w: role %q is not in the catalog", ErrConfiguration, role))
			continue
		}
		set := permissionSet{index: make(map[Permission]struct{}, len(perms))}
		for _, perm := range perms {
			if !InCatalog(perm) {
				errs = append(errs, fmt.Errorf("%w: role %q references unknown permission %q", ErrConfiguration, role, perm.Name()))
				continue
			}
			if _, dup := set.index[perm]; dup {
				continue
			}
			set.index[perm] = struct{}{}
			set.ordered = append(set.ordered, perm)
		}
		sets[role] = set
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Policy{sets: sets}, nil
}

// MustDefaultPolicy returns the validated default table and panics when it is
// inconsistent with the catalog.
func MustDefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultGrants())
	if err != nil {
		panic(err)
	}
	return p
}

// PermissionsFor returns the ordered permissions held by role. Unknown roles
// yield an empty set.
func (p *Policy) PermissionsFor(role Role) []Permission {
	if p == nil {
		return []Permission{}
	}
	set, ok := p.sets[role]
	if !ok {
		return []Permission{}
	}
	out := make([]Permission, len(set.ordered))
	copy(out, set.ordered)
	return out
}

// Holds reports whether role holds perm.
func (p *Policy) Holds(role Role, perm Permission) bool {
	if p == nil {
		return false
	}
	set, ok := p.sets[role]
	if !ok {
		return false
	}
	_, ok = set.index[perm]
	return ok
}
