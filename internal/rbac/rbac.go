package rbac

// Role is an admin user's role. Roles are static; there is no per-user
// permission storage.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleViewer  Role = "viewer"
)

// Permission names an admin capability.
type Permission string

const (
	PermProductsRead  Permission = "products:read"
	PermProductsWrite Permission = "products:write"
	PermDraftsWrite   Permission = "drafts:write"
	PermOrdersRead    Permission = "orders:read"
	PermOrdersWrite   Permission = "orders:write"
	PermQuotesRead    Permission = "quotes:read"
	PermQuotesWrite   Permission = "quotes:write"
	PermAdminsManage  Permission = "admins:manage"
)

var rolePermissions = map[Role]map[Permission]struct{}{
	RoleAdmin: {
		PermProductsRead: {}, PermProductsWrite: {}, PermDraftsWrite: {},
		PermOrdersRead: {}, PermOrdersWrite: {},
		PermQuotesRead: {}, PermQuotesWrite: {},
		PermAdminsManage: {},
	},
	RoleManager: {
		PermProductsRead: {}, PermProductsWrite: {}, PermDraftsWrite: {},
		PermOrdersRead: {}, PermOrdersWrite: {},
		PermQuotesRead: {}, PermQuotesWrite: {},
	},
	RoleViewer: {
		PermProductsRead: {}, PermOrdersRead: {}, PermQuotesRead: {},
	},
}

// Valid reports whether the role exists in the table.
func Valid(role Role) bool {
	_, ok := rolePermissions[role]
	return ok
}

// Can reports whether the role grants the permission. Unknown roles grant
// nothing.
func Can(role Role, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = perms[perm]
	return ok
}
