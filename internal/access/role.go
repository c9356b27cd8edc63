package access

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role is the identity tier of a user as issued by the identity provider.
type Role string

// Known roles, ordered from most to least privileged.
const (
	RolePlatformOwner Role = "platform_owner"
	RoleCompany       Role = "company"
	RoleEmployee      Role = "employee"
	RoleExecutor      Role = "executor"
)

// Level is the rank of a role in the hierarchy. Zero means unrecognized.
type Level int

const (
	LevelNone          Level = 0
	LevelExecutor      Level = 1
	LevelEmployee      Level = 2
	LevelCompany       Level = 3
	LevelPlatformOwner Level = 4
)

var hierarchy = map[Role]Level{
	RolePlatformOwner: LevelPlatformOwner,
	RoleCompany:       LevelCompany,
	RoleEmployee:      LevelEmployee,
	RoleExecutor:      LevelExecutor,
}

// Roles returns the known roles ordered by descending level.
func Roles() []Role {
	return []Role{RolePlatformOwner, RoleCompany, RoleEmployee, RoleExecutor}
}

// ParseRole normalizes a raw token and reports whether it names a known role.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := hierarchy[r]
	return ok
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// Label returns a display name, e.g. "Platform Owner".
func (r Role) Label() string {
	if r == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(r), "_", " "))
}

// HierarchyLevel returns the fixed level of role, or LevelNone when the role
// is not recognized. Unknown roles are dominated by every known role.
func HierarchyLevel(role Role) Level {
	return hierarchy[role]
}

// HasRoleOrHigher reports whether userRole ranks at least as high as requiredRole.
func HasRoleOrHigher(userRole, requiredRole Role) bool {
	return HierarchyLevel(userRole) >= HierarchyLevel(requiredRole)
}

// CanManageUser reports whether an actor holding actingRole may manage a user
// holding targetRole. Peers and superiors can never be managed.
func CanManageUser(actingRole, targetRole Role) bool {
	return HierarchyLevel(actingRole) > HierarchyLevel(targetRole)
}

// AssignableRoles lists the roles actingRole may hand out, highest first.
func AssignableRoles(actingRole Role) []Role {
	out := make([]Role, 0, len(hierarchy))
	for _, role := range Roles() {
		if CanManageUser(actingRole, role) {
			out = append(out, role)
		}
	}
	return out
}
