// Package rbac holds the role registry and the access validator: the single
// enforcement point for school-scoped authorization.
package rbac

import "github.com/shulehq/shule/core/user"

// Permission names a capability a role may hold.
type Permission string

const (
	PermOnboardSchools   Permission = "schools:onboard"
	PermManageSchool     Permission = "school:manage"
	PermManageUsers      Permission = "users:manage"
	PermManageChildren   Permission = "children:manage"
	PermLinkFamilies     Permission = "families:link"
	PermAssignTeachers   Permission = "teachers:assign"
	PermRecordAttendance Permission = "attendance:record"
	PermViewAttendance   Permission = "attendance:view"
	PermViewAudit        Permission = "audit:view"
)

// Definition describes what a role can do and where it lands after login.
type Definition struct {
	Permissions []Permission
	LandingPath string
}

var registry = map[user.Role]Definition{
	user.RoleSuper: {
		Permissions: []Permission{
			PermOnboardSchools, PermManageSchool, PermManageUsers, PermManageChildren,
			PermLinkFamilies, PermAssignTeachers, PermRecordAttendance, PermViewAttendance,
			PermViewAudit,
		},
		LandingPath: "/super",
	},
	user.RoleAdmin: {
		Permissions: []Permission{
			PermManageSchool, PermManageUsers, PermManageChildren, PermLinkFamilies,
			PermAssignTeachers, PermViewAttendance, PermViewAudit,
		},
		LandingPath: "/admin",
	},
	user.RolePrincipal: {
		Permissions: []Permission{
			PermManageSchool, PermManageUsers, PermManageChildren, PermLinkFamilies,
			PermAssignTeachers, PermViewAttendance, PermViewAudit,
		},
		LandingPath: "/admin",
	},
	user.RoleTeacher: {
		Permissions: []Permission{PermRecordAttendance, PermViewAttendance},
		LandingPath: "/teacher",
	},
	user.RoleParent: {
		Permissions: []Permission{PermViewAttendance},
		LandingPath: "/parent",
	},
}

// Lookup returns the registry definition for a role.
// An unknown role has no permissions and an empty landing path.
func Lookup(role user.Role) Definition {
	return registry[role]
}

// Can reports whether the role holds the given permission.
func Can(role user.Role, perm Permission) bool {
	for _, p := range registry[role].Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// LandingPath returns the default post-login path for a role.
func LandingPath(role user.Role) string {
	return registry[role].LandingPath
}
