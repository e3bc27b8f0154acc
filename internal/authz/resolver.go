package authz

import "sync"

// FeatureFlag gates a named console capability on a permission set and a
// role set. Enabled must hold globally, every required permission must be
// granted, and at least one required role must be held.
type FeatureFlag struct {
	Name                string
	Enabled             bool
	RequiredPermissions []Permission
	RequiredRoles       []Role
}

// ClaimContext carries the contextual inputs for claim-related permission
// checks.
type ClaimContext struct {
	ClaimedCount int
	MaxClaims    int
}

// Resolver answers capability questions for the current session user. The
// user snapshot is swapped wholesale on login/refresh/verify; all reads see
// either the old snapshot or the new one, never a mix.
type Resolver struct {
	mu    sync.RWMutex
	user  *User
	flags map[string]FeatureFlag
}

// NewResolver creates a resolver with no user and the given feature flags.
func NewResolver(flags ...FeatureFlag) *Resolver {
	m := make(map[string]FeatureFlag, len(flags))
	for _, f := range flags {
		m[f.Name] = f
	}
	return &Resolver{flags: m}
}

// SetUser replaces the user snapshot. Pass nil on logout.
func (r *Resolver) SetUser(u *User) {
	r.mu.Lock()
	r.user = u
	r.mu.Unlock()
}

// CurrentUser returns the active snapshot, nil when logged out.
func (r *Resolver) CurrentUser() *User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.user
}

// HasPermission reports whether p is granted explicitly or implied by one of
// the user's roles.
func (r *Resolver) HasPermission(p Permission) bool {
	r.mu.RLock()
	u := r.user
	r.mu.RUnlock()
	if u == nil {
		return false
	}
	for _, have := range u.Permissions {
		if have == p {
			return true
		}
	}
	for _, role := range u.Roles {
		for _, implied := range rolePermissions[role] {
			if implied == p {
				return true
			}
		}
	}
	return false
}

// HasRole reports whether the user carries the role.
func (r *Resolver) HasRole(role Role) bool {
	return r.CurrentUser().HasRole(role)
}

// HasAnyRole reports whether the user carries at least one of the roles.
func (r *Resolver) HasAnyRole(roles ...Role) bool {
	u := r.CurrentUser()
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether the user carries every role.
func (r *Resolver) HasAllRoles(roles ...Role) bool {
	u := r.CurrentUser()
	if u == nil {
		return false
	}
	for _, role := range roles {
		if !u.HasRole(role) {
			return false
		}
	}
	return true
}

// RoleLevel is the highest role level of the current user, 0 when logged out.
func (r *Resolver) RoleLevel() int {
	return r.CurrentUser().RoleLevel()
}

// CanManage reports whether the current user outranks target. Strictly
// greater: peers cannot manage each other.
func (r *Resolver) CanManage(target *User) bool {
	return r.RoleLevel() > target.RoleLevel()
}

// IsFeatureEnabled evaluates a registered flag for the current user. Unknown
// flags are disabled.
func (r *Resolver) IsFeatureEnabled(name string) bool {
	r.mu.RLock()
	flag, ok := r.flags[name]
	r.mu.RUnlock()
	if !ok || !flag.Enabled {
		return false
	}
	for _, p := range flag.RequiredPermissions {
		if !r.HasPermission(p) {
			return false
		}
	}
	if len(flag.RequiredRoles) == 0 {
		return true
	}
	return r.HasAnyRole(flag.RequiredRoles...)
}

// RegisterFlag adds or replaces a feature flag definition.
func (r *Resolver) RegisterFlag(flag FeatureFlag) {
	r.mu.Lock()
	r.flags[flag.Name] = flag
	r.mu.Unlock()
}

// HasContextualPermission runs the base permission check followed by the
// permission-specific context rules.
func (r *Resolver) HasContextualPermission(p Permission, c ClaimContext) bool {
	if !r.HasPermission(p) {
		return false
	}
	switch p {
	case PermCustomerClaim:
		if c.MaxClaims > 0 && c.ClaimedCount >= c.MaxClaims {
			return false
		}
	}
	return true
}
