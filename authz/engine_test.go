package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func staffProfile(id string, role Role) *Profile {
	return &Profile{Kind: KindStaff, ID: id, Role: role}
}

func residentProfile(id, communityID string) *Profile {
	return &Profile{Kind: KindResident, ID: id, CommunityID: communityID}
}

func existsRow(exists bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(exists)
}

func TestCanAccess_NilProfileDenied(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	engine := NewEngine(db)
	if engine.CanAccess(context.Background(), nil, CategoryTasks, ActionView, "") {
		t.Error("nil profile must be denied")
	}
}

func TestCanAccess_AdminNeedsNoCommunityLink(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	// No link query expected: admin-level roles have global reach.
	engine := NewEngine(db)
	admin := staffProfile("staff-admin", RoleAdmin)
	if !engine.CanAccess(context.Background(), admin, CategoryCommunities, ActionEdit, "comm-9") {
		t.Error("admin should edit any community")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCanAccess_ManagerCommunityScoping(t *testing.T) {
	tests := []struct {
		name   string
		linked bool
		want   bool
	}{
		{"linked manager can edit", true, true},
		{"unlinked manager denied", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock db: %v", err)
			}
			defer db.Close()

			mock.ExpectQuery("FROM staff_communities").
				WithArgs("staff-1", "comm-1").
				WillReturnRows(existsRow(tt.linked))

			engine := NewEngine(db)
			manager := staffProfile("staff-1", RoleManager)
			got := engine.CanAccess(context.Background(), manager, CategoryCommunities, ActionEdit, "comm-1")
			if got != tt.want {
				t.Errorf("CanAccess = %v, want %v", got, tt.want)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestCanAccess_TaskOwnershipWidensEdit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	// Assistants cannot edit tasks broadly, but ownership overrides the table.
	mock.ExpectQuery("assigned_to").
		WithArgs("task-1", "staff-2").
		WillReturnRows(existsRow(true))

	engine := NewEngine(db)
	assistant := staffProfile("staff-2", RoleAssistant)
	if !engine.CanAccess(context.Background(), assistant, CategoryTasks, ActionEdit, "task-1") {
		t.Error("task owner should edit own task despite role table")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCanAccess_NonOwnerAssistantCannotEditTask(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("assigned_to").
		WithArgs("task-2", "staff-2").
		WillReturnRows(existsRow(false))

	engine := NewEngine(db)
	assistant := staffProfile("staff-2", RoleAssistant)
	if engine.CanAccess(context.Background(), assistant, CategoryTasks, ActionEdit, "task-2") {
		t.Error("non-owner assistant must not edit tasks")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCanAccess_ManagerTaskEditRequiresCommunityLink(t *testing.T) {
	tests := []struct {
		name   string
		linked bool
		want   bool
	}{
		{"linked community", true, true},
		{"other community", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock db: %v", err)
			}
			defer db.Close()

			// Not the owner, so the broad-edit path runs the community join.
			mock.ExpectQuery("assigned_to").
				WithArgs("task-3", "staff-3").
				WillReturnRows(existsRow(false))
			mock.ExpectQuery("JOIN staff_communities").
				WithArgs("task-3", "staff-3").
				WillReturnRows(existsRow(tt.linked))

			engine := NewEngine(db)
			manager := staffProfile("staff-3", RoleManager)
			got := engine.CanAccess(context.Background(), manager, CategoryTasks, ActionEdit, "task-3")
			if got != tt.want {
				t.Errorf("CanAccess = %v, want %v", got, tt.want)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestCanAccess_FailsClosedOnLookupError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("assigned_to").
		WithArgs("task-4", "staff-4").
		WillReturnError(errors.New("connection reset"))

	engine := NewEngine(db)
	assistant := staffProfile("staff-4", RoleAssistant)
	if engine.CanAccess(context.Background(), assistant, CategoryTasks, ActionEdit, "task-4") {
		t.Error("lookup failure must deny, not allow")
	}
}

func TestCanAccess_ResidentRules(t *testing.T) {
	resident := residentProfile("res-1", "comm-1")

	tests := []struct {
		name       string
		category   Category
		action     Action
		resourceID string
		want       bool
	}{
		{"own community view", CategoryCommunities, ActionView, "comm-1", true},
		{"other community view", CategoryCommunities, ActionView, "comm-2", false},
		{"community list denied", CategoryCommunities, ActionView, "", false},
		{"community edit denied", CategoryCommunities, ActionEdit, "comm-1", false},
		{"maintenance create for self", CategoryMaintenance, ActionCreate, "", true},
		{"maintenance create own id", CategoryMaintenance, ActionCreate, "res-1", true},
		{"maintenance create for other", CategoryMaintenance, ActionCreate, "res-2", false},
		{"maintenance list view", CategoryMaintenance, ActionView, "", true},
		{"users denied", CategoryUsers, ActionView, "", false},
		{"reports denied", CategoryReports, ActionView, "", false},
		{"settings denied", CategorySettings, ActionView, "", false},
		{"tasks denied", CategoryTasks, ActionView, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock db: %v", err)
			}
			defer db.Close()

			engine := NewEngine(db)
			got := engine.CanAccess(context.Background(), resident, tt.category, tt.action, tt.resourceID)
			if got != tt.want {
				t.Errorf("CanAccess(%v, %v, %q) = %v, want %v", tt.category, tt.action, tt.resourceID, got, tt.want)
			}
		})
	}
}

func TestCanAccess_ResidentMaintenanceOwnership(t *testing.T) {
	tests := []struct {
		name string
		owns bool
		want bool
	}{
		{"own request", true, true},
		{"someone else's request", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock db: %v", err)
			}
			defer db.Close()

			mock.ExpectQuery("FROM maintenance_requests").
				WithArgs("mr-1", "res-1").
				WillReturnRows(existsRow(tt.owns))

			engine := NewEngine(db)
			resident := residentProfile("res-1", "comm-1")
			got := engine.CanAccess(context.Background(), resident, CategoryMaintenance, ActionView, "mr-1")
			if got != tt.want {
				t.Errorf("CanAccess = %v, want %v", got, tt.want)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}
