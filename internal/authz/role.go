package authz

import "strings"

// Role is a closed set of console roles with a total order. Level comparisons
// gate management actions such as claim transfers.
type Role string

const (
	RoleReadOnly   Role = "readonly"
	RoleAgent      Role = "agent"
	RoleSupervisor Role = "supervisor"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

var roleLevels = map[Role]int{
	RoleReadOnly:   1,
	RoleAgent:      2,
	RoleSupervisor: 3,
	RoleManager:    4,
	RoleAdmin:      5,
	RoleSuperAdmin: 6,
}

// Level returns the role's position in the management order, 0 for unknown
// roles.
func (r Role) Level() int {
	return roleLevels[r]
}

// ParseRole normalizes a wire role name. ok is false for names outside the
// closed set.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	_, ok := roleLevels[r]
	return r, ok
}

// ParseRoles normalizes and deduplicates wire role names, dropping unknown
// entries.
func ParseRoles(names []string) []Role {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[Role]struct{}, len(names))
	var out []Role
	for _, name := range names {
		r, ok := ParseRole(name)
		if !ok {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
