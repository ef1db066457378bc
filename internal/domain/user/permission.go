package user

type Permission string

const (
	// Attendance
	PermissionAttendanceEdit        Permission = "attendance.edit"
	PermissionAttendanceViewHistory Permission = "attendance.view_history"

	// Courses
	PermissionCourseView   Permission = "course.view"
	PermissionCourseManage Permission = "course.manage"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionAttendanceEdit,
		PermissionAttendanceViewHistory,
		PermissionCourseView,
		PermissionCourseManage,
	},
	RoleTutor: {
		PermissionAttendanceEdit,
		PermissionAttendanceViewHistory,
		PermissionCourseView,
	},
	RoleTeacher: {
		PermissionAttendanceEdit,
		PermissionAttendanceViewHistory,
		PermissionCourseView,
	},
	RoleRecommender: {
		PermissionAttendanceViewHistory,
		PermissionCourseView,
	},
	RoleStudent: {
		PermissionCourseView,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
