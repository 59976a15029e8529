package rbac

import "testing"

func TestCan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleAdmin, PermAdminsManage, true},
		{RoleAdmin, PermProductsWrite, true},
		{RoleManager, PermProductsWrite, true},
		{RoleManager, PermAdminsManage, false},
		{RoleViewer, PermProductsRead, true},
		{RoleViewer, PermProductsWrite, false},
		{RoleViewer, PermDraftsWrite, false},
		{Role("ghost"), PermProductsRead, false},
	}

	for _, tc := range tests {
		if got := Can(tc.role, tc.perm); got != tc.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	for _, role := range []Role{RoleAdmin, RoleManager, RoleViewer} {
		if !Valid(role) {
			t.Errorf("expected %s to be a valid role", role)
		}
	}
	if Valid(Role("superuser")) {
		t.Error("unknown role must be invalid")
	}
}
