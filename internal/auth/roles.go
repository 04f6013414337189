package auth

import "github.com/cityworks/addressing-service/internal/domain"

// Permission names an action a staff member may perform.
type Permission string

const (
	PermTicketCreate     Permission = "ticket:create"
	PermTicketRead       Permission = "ticket:read"
	PermTicketTransition Permission = "ticket:transition"
	PermTicketClose      Permission = "ticket:close"
	PermStaffManage      Permission = "staff:manage"
	PermWorkerTrigger    Permission = "worker:trigger"
)

var rolePermissions = map[domain.StaffRole][]Permission{
	domain.StaffRoleFrontDesk: {
		PermTicketCreate, PermTicketRead, PermTicketTransition, PermTicketClose,
	},
	domain.StaffRoleGISStaff: {
		PermTicketRead, PermTicketTransition,
	},
	domain.StaffRoleGISVerifier: {
		PermTicketRead, PermTicketTransition,
	},
	domain.StaffRoleAdmin: {
		PermTicketCreate, PermTicketRead, PermTicketTransition, PermTicketClose,
		PermStaffManage, PermWorkerTrigger,
	},
}

// HasPermission reports whether a role grants a permission.
func HasPermission(role domain.StaffRole, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
