package domain

import "testing"

func TestAuthContextRoles(t *testing.T) {
	tests := []struct {
		role        Role
		isAdmin     bool
		canAnnotate bool
	}{
		{RoleAdmin, true, true},
		{RoleMember, false, true},
		{RoleViewer, false, false},
		{Role("guest"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			a := &AuthContext{UserID: "u", Role: tt.role}
			if a.IsAdmin() != tt.isAdmin {
				t.Errorf("IsAdmin() = %v, want %v", a.IsAdmin(), tt.isAdmin)
			}
			if a.CanAnnotate() != tt.canAnnotate {
				t.Errorf("CanAnnotate() = %v, want %v", a.CanAnnotate(), tt.canAnnotate)
			}
		})
	}
}

func TestCanAnnotateFollowsAnnotatingRoles(t *testing.T) {
	var nobody *AuthContext
	if nobody.CanAnnotate() {
		t.Error("nil auth context must not annotate")
	}

	for _, role := range AnnotatingRoles {
		if role == RoleViewer {
			t.Errorf("viewer listed as annotating role")
		}
		if !(&AuthContext{Role: role}).CanAnnotate() {
			t.Errorf("CanAnnotate() = false for annotating role %s", role)
		}
	}
}
