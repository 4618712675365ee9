package authz

import (
	"testing"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		category Category
		action   Action
		want     bool
	}{
		// Admin permissions
		{"admin can view users", RoleAdmin, CategoryUsers, ActionView, true},
		{"admin can delete communities", RoleAdmin, CategoryCommunities, ActionDelete, true},
		{"admin can export reports", RoleAdmin, CategoryReports, ActionExport, true},
		{"admin cannot delete reports", RoleAdmin, CategoryReports, ActionDelete, false},
		{"admin can edit settings", RoleAdmin, CategorySettings, ActionEdit, true},
		{"admin cannot create settings", RoleAdmin, CategorySettings, ActionCreate, false},
		{"admin cannot delete settings", RoleAdmin, CategorySettings, ActionDelete, false},
		{"admin can edit maintenance requests", RoleAdmin, CategoryMaintenance, ActionEdit, true},
		{"admin cannot file maintenance requests", RoleAdmin, CategoryMaintenance, ActionCreate, false},

		// Super Admin mirrors Admin
		{"super admin can delete users", RoleSuperAdmin, CategoryUsers, ActionDelete, true},
		{"super admin can export reports", RoleSuperAdmin, CategoryReports, ActionExport, true},
		{"super admin cannot delete reports", RoleSuperAdmin, CategoryReports, ActionDelete, false},
		{"super admin cannot file maintenance requests", RoleSuperAdmin, CategoryMaintenance, ActionCreate, false},

		// Community Manager permissions
		{"manager can edit communities", RoleManager, CategoryCommunities, ActionEdit, true},
		{"manager cannot create communities", RoleManager, CategoryCommunities, ActionCreate, false},
		{"manager cannot delete communities", RoleManager, CategoryCommunities, ActionDelete, false},
		{"manager can create tasks", RoleManager, CategoryTasks, ActionCreate, true},
		{"manager can delete tasks", RoleManager, CategoryTasks, ActionDelete, true},
		{"manager can view users", RoleManager, CategoryUsers, ActionView, true},
		{"manager cannot edit users", RoleManager, CategoryUsers, ActionEdit, false},
		{"manager cannot edit settings", RoleManager, CategorySettings, ActionEdit, false},

		// Maintenance Staff permissions
		{"maintenance can view tasks", RoleMaintenance, CategoryTasks, ActionView, true},
		{"maintenance can edit tasks", RoleMaintenance, CategoryTasks, ActionEdit, true},
		{"maintenance cannot create tasks", RoleMaintenance, CategoryTasks, ActionCreate, false},
		{"maintenance cannot view users", RoleMaintenance, CategoryUsers, ActionView, false},
		{"maintenance cannot view reports", RoleMaintenance, CategoryReports, ActionView, false},

		// Administrative Assistant permissions
		{"assistant can create tasks", RoleAssistant, CategoryTasks, ActionCreate, true},
		{"assistant cannot edit tasks", RoleAssistant, CategoryTasks, ActionEdit, false},
		{"assistant can export reports", RoleAssistant, CategoryReports, ActionExport, true},
		{"assistant cannot edit communities", RoleAssistant, CategoryCommunities, ActionEdit, false},

		// Deny-by-default
		{"unknown role denied", Role("Janitor"), CategoryTasks, ActionView, false},
		{"empty role denied", Role(""), CategoryTasks, ActionView, false},
		{"unknown category denied", RoleAdmin, Category("invoices"), ActionView, false},
		{"unknown action denied", RoleAdmin, CategoryTasks, Action("approve"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HasPermission(tt.role, tt.category, tt.action)
			if got != tt.want {
				t.Errorf("HasPermission(%v, %v, %v) = %v, want %v", tt.role, tt.category, tt.action, got, tt.want)
			}
		})
	}
}

func TestCapabilitiesOf_UnknownRole(t *testing.T) {
	for _, role := range []Role{"", "resident", "Owner", "not-a-role"} {
		caps := CapabilitiesOf(role)
		if caps == nil {
			t.Fatalf("CapabilitiesOf(%q) = nil, want empty map", role)
		}
		if len(caps) != 0 {
			t.Errorf("CapabilitiesOf(%q) has %d categories, want 0", role, len(caps))
		}
	}
}

func TestCapabilitiesOf_ReturnsCopy(t *testing.T) {
	caps := CapabilitiesOf(RoleManager)
	if !caps[CategoryTasks][ActionCreate] {
		t.Fatal("manager should be able to create tasks")
	}

	// Mutating the returned map must not touch the static table.
	caps[CategoryTasks][ActionDelete] = false
	if !HasPermission(RoleManager, CategoryTasks, ActionDelete) {
		t.Error("mutating CapabilitiesOf result leaked into RolePermissions")
	}
}

func TestCapabilitiesOf_MatchesTable(t *testing.T) {
	for role := range RolePermissions {
		caps := CapabilitiesOf(role)
		for category, actions := range RolePermissions[role] {
			for action, want := range actions {
				if caps[category][action] != want {
					t.Errorf("CapabilitiesOf(%v)[%v][%v] = %v, want %v", role, category, action, caps[category][action], want)
				}
			}
		}
	}
}

func TestIsAdminRole(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleAdmin, true},
		{RoleSuperAdmin, true},
		{RoleManager, false},
		{RoleMaintenance, false},
		{RoleAssistant, false},
		{Role(""), false},
	}

	for _, tt := range tests {
		if got := IsAdminRole(tt.role); got != tt.want {
			t.Errorf("IsAdminRole(%v) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestStaffOnlyCategory(t *testing.T) {
	staffOnly := []Category{CategoryUsers, CategoryReports, CategorySettings}
	for _, category := range staffOnly {
		if !StaffOnlyCategory(category) {
			t.Errorf("StaffOnlyCategory(%v) = false, want true", category)
		}
	}

	shared := []Category{CategoryCommunities, CategoryTasks, CategoryMaintenance}
	for _, category := range shared {
		if StaffOnlyCategory(category) {
			t.Errorf("StaffOnlyCategory(%v) = true, want false", category)
		}
	}
}
