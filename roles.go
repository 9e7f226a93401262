package auth

import "strings"

// UserRole is the user's role
type UserRole string

const (
	// RoleGuest can view
	RoleGuest UserRole = "GUEST"
	// RoleMember can view and edit
	RoleMember UserRole = "MEMBER"
	// RoleAdmin can view, edit and create
	RoleAdmin UserRole = "ADMIN"
	// RoleOwner has every capability
	RoleOwner UserRole = "OWNER"
)

// DefaultRole is assigned to every self-registered identity. There is no
// provisioning path for other roles.
const DefaultRole = RoleOwner

var roleHierarchy = map[UserRole]int{
	RoleGuest:  0,
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// ParseRole parses roleStr case-insensitively
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.ToUpper(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// IsValid checks if the role is one of the predefined roles
func (r UserRole) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

func (r UserRole) String() string {
	return string(r)
}

// CanRead checks if this role can read resources
func (r UserRole) CanRead() bool {
	return r.IsAtLeast(RoleGuest)
}

// CanEdit checks if this role can edit resources
func (r UserRole) CanEdit() bool {
	return r.IsAtLeast(RoleMember)
}

// CanCreate checks if this role can create resources
func (r UserRole) CanCreate() bool {
	return r.IsAtLeast(RoleAdmin)
}

// CanDelete checks if this role can delete resources
func (r UserRole) CanDelete() bool {
	return r.IsAtLeast(RoleOwner)
}

// IsAtLeast checks if this role meets the minimum required level.
// Unknown roles never do.
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	current, ok := roleHierarchy[r]
	if !ok {
		return false
	}
	min, ok := roleHierarchy[minRole]
	if !ok {
		return false
	}
	return current >= min
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{RoleGuest, RoleMember, RoleAdmin, RoleOwner}
}
