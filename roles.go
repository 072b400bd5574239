package tours

// UserRole is the user's role
type UserRole string

const (
	// RoleUser is a customer, can book tours and write reviews
	RoleUser UserRole = "user"
	// RoleGuide leads tours
	RoleGuide UserRole = "guide"
	// RoleLeadGuide manages tours
	RoleLeadGuide UserRole = "lead-guide"
	// RoleAdmin manages everything
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	default:
		return false
	}
}

// In reports whether r is one of roles
func (r UserRole) In(roles ...UserRole) bool {
	for _, role := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleUser,
		RoleGuide,
		RoleLeadGuide,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}
