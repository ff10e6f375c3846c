package admin

// Permission represents an admin permission
type Permission string

const (
	PermManageCodes     Permission = "codes.manage"
	PermManagePurchases Permission = "purchases.manage"
	PermManageSettings  Permission = "settings.manage"
	PermViewPayments    Permission = "payments.view"
	PermViewAuditLogs   Permission = "audit.view"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleSuperAdmin: {
		PermManageCodes, PermManagePurchases, PermManageSettings, PermViewPayments, PermViewAuditLogs,
	},
	RoleAdmin: {
		PermManageCodes, PermManagePurchases, PermViewPayments, PermViewAuditLogs,
	},
	RoleSupport: {
		PermViewPayments,
	},
}

// Can reports whether the role carries perm.
func (r Role) Can(perm Permission) bool {
	for _, p := range RolePermissions[r] {
		if p == perm {
			return true
		}
	}
	return false
}
