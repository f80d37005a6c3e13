package auth

import "strings"

// Role is the closed set of portal roles
type Role string

const (
	// RoleUser is a portal client filing requests
	RoleUser Role = "user"
	// RoleAdmin manages the portal
	RoleAdmin Role = "admin"
	// RoleAgent assists users with their filings
	RoleAgent Role = "agent"
)

var roleHomeRoutes = map[Role]string{
	RoleUser:  "/user/dashboard",
	RoleAdmin: "/admin/dashboard",
	RoleAgent: "/agent/dashboard",
}

// legacy role names still found in older records
var roleAliases = map[string]Role{
	"user":       RoleUser,
	"client":     RoleUser,
	"admin":      RoleAdmin,
	"superadmin": RoleAdmin,
	"agent":      RoleAgent,
	"staff":      RoleAgent,
}

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleAgent:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// HomeRoute returns the dashboard route for the role. Roles outside the
// closed set have no home.
func (r Role) HomeRoute() (string, bool) {
	route, ok := roleHomeRoutes[r]
	return route, ok
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RoleUser,
		RoleAdmin,
		RoleAgent,
	}
}

// ParseRole parses an exact role name
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}

// NormalizeRole maps a role name, including legacy aliases, into the closed
// set. It is meant for reading records and backend responses, access
// decisions always use the exact value.
func NormalizeRole(roleStr string) (Role, bool) {
	role, ok := roleAliases[strings.ToLower(strings.TrimSpace(roleStr))]
	return role, ok
}
