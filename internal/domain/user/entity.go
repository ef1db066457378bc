package user

import "strings"

type Role string

// Role values as issued by the identity backend. The casing is not uniform
// upstream, so compare with ParseRole.
const (
	RoleAdmin       Role = "ADMIN"
	RoleTutor       Role = "TUTOR"
	RoleTeacher     Role = "profesor"
	RoleRecommender Role = "recomendador"
	RoleStudent     Role = "ALUMNO"
)

var roles = []Role{RoleAdmin, RoleTutor, RoleTeacher, RoleRecommender, RoleStudent}

// ParseRole matches a claim value case-insensitively.
func ParseRole(raw string) (Role, bool) {
	for _, r := range roles {
		if strings.EqualFold(string(r), strings.TrimSpace(raw)) {
			return r, true
		}
	}
	return "", false
}

// Operator is the authenticated user acting on the desk.
type Operator struct {
	ID    string
	Email string
	Role  Role
}

// IsAdmin checks if operator has the admin role
func (o Operator) IsAdmin() bool {
	return o.Role == RoleAdmin
}

// CanEditAttendance checks if operator may take attendance
func (o Operator) CanEditAttendance() bool {
	return HasPermission(o.Role, PermissionAttendanceEdit)
}
