package auth

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleReader, PermDeviceRead, true},
		{RoleReader, PermDataRead, true},
		{RoleReader, PermDeviceWrite, false},
		{RoleReader, PermDataWrite, false},
		{RoleWriter, PermDeviceRead, true},
		{RoleWriter, PermDeviceWrite, true},
		{RoleWriter, PermDataRead, true},
		{RoleWriter, PermDataWrite, true},
		{Role("nonexistent"), PermDeviceRead, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			if got := HasPermission(tt.role, tt.perm); got != tt.want {
				t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.want)
			}
		})
	}
}

func TestPermissionsForRole(t *testing.T) {
	perms := PermissionsForRole(RoleWriter)
	if len(perms) != 4 {
		t.Errorf("writer has %d permissions, want 4", len(perms))
	}

	// Mutating the copy must not leak into the table.
	perms[0] = "tampered"
	if !HasPermission(RoleWriter, PermDeviceRead) {
		t.Error("PermissionsForRole returned the backing slice")
	}
}

func TestPermissionsForRole_Unknown(t *testing.T) {
	if perms := PermissionsForRole(Role("nobody")); perms != nil {
		t.Errorf("PermissionsForRole(unknown) = %v, want nil", perms)
	}
}

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleReader, true},
		{RoleWriter, true},
		{Role("admin"), false},
		{Role(""), false},
	}
	for _, tt := range tests {
		if got := IsValidRole(tt.role); got != tt.want {
			t.Errorf("IsValidRole(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}
