package authz

// User is the authenticated principal for the lifetime of a session. It is
// replaced wholesale on login, refresh, and verify; no component mutates it
// in place.
type User struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"displayName"`
	Email       string       `json:"email"`
	Roles       []Role       `json:"roles"`
	Permissions []Permission `json:"permissions"`
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(r Role) bool {
	if u == nil {
		return false
	}
	for _, have := range u.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// RoleLevel is the highest level across the user's roles, 0 when none.
func (u *User) RoleLevel() int {
	if u == nil {
		return 0
	}
	max := 0
	for _, r := range u.Roles {
		if lvl := r.Level(); lvl > max {
			max = lvl
		}
	}
	return max
}
