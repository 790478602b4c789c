package auth

// Permission represents a named capability in the API.
type Permission string

// Permission constants.
const (
	PermDeviceRead  Permission = "device:read"
	PermDeviceWrite Permission = "device:write"
	PermDataRead    Permission = "data:read"
	PermDataWrite   Permission = "data:write"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleReader: {
		PermDeviceRead,
		PermDataRead,
	},
	RoleWriter: {
		PermDeviceRead,
		PermDeviceWrite,
		PermDataRead,
		PermDataWrite,
	},
}

// HasPermission checks whether a role has the given permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the permissions granted to role.
// Unknown roles get nil.
func PermissionsForRole(role Role) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
