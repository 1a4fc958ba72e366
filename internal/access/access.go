// Package access derives what the current user may do from their role.
// Nothing here is cached: every call recomputes from the user it is given.
package access

import "github.com/momentokidspass/mkp/internal/user"

// Permissions is the set of role-gated capabilities.
type Permissions struct {
	CanCreateEvents  bool `json:"canCreateEvents"`
	CanEditAllEvents bool `json:"canEditAllEvents"`
	CanEditOwnEvents bool `json:"canEditOwnEvents"`
	CanDeleteEvents  bool `json:"canDeleteEvents"`
	CanViewAllUsers  bool `json:"canViewAllUsers"`
	CanManageUsers   bool `json:"canManageUsers"`
	CanViewReports   bool `json:"canViewReports"`
	CanManageSystem  bool `json:"canManageSystem"`
}

// For returns the permissions of u. A nil user has none.
func For(u *user.User) Permissions {
	if u == nil {
		return Permissions{}
	}

	switch u.Role {
	case user.RoleAdmin:
		return Permissions{
			CanCreateEvents:  true,
			CanEditAllEvents: true,
			CanEditOwnEvents: true,
			CanDeleteEvents:  true,
			CanViewAllUsers:  true,
			CanManageUsers:   true,
			CanViewReports:   true,
			CanManageSystem:  true,
		}
	case user.RoleTeacher:
		return Permissions{
			CanCreateEvents:  true,
			CanEditOwnEvents: true,
		}
	default:
		return Permissions{}
	}
}

// IsAdmin reports whether u is an administrator.
func IsAdmin(u *user.User) bool {
	return u != nil && u.Role == user.RoleAdmin
}

// IsTeacher reports whether u is a teacher.
func IsTeacher(u *user.User) bool {
	return u != nil && u.Role == user.RoleTeacher
}

// CanAccessAllData is true for administrators only.
func CanAccessAllData(u *user.User) bool {
	return IsAdmin(u)
}

// CanAccessTeacherData reports whether u may read data owned by teacherID.
// Administrators may read everything; a linked teacher only their own.
func CanAccessTeacherData(u *user.User, teacherID string) bool {
	if IsAdmin(u) {
		return true
	}
	if IsTeacher(u) && u.IsTeacherLinked() {
		return *u.TeacherID == teacherID
	}
	return false
}

// TeacherID returns the linked teacher id of u, or "" when there is none.
func TeacherID(u *user.User) string {
	if u == nil || u.TeacherID == nil {
		return ""
	}
	return *u.TeacherID
}
