package services

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/proplio/api/authz"
	"github.com/proplio/api/db"
)

func TestCreateRequest_StaffForbidden(t *testing.T) {
	database, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	svc := NewMaintenanceService(database, NewNotifier(database))
	_, err = svc.CreateRequest(context.Background(), managerProfile("staff-1"), MaintenanceInput{Title: "Leak"})
	if !errors.Is(err, authz.ErrForbidden) {
		t.Errorf("expected ErrForbidden for staff caller, got %v", err)
	}
}

func TestCreateRequest_CommunityAndUnitFromProfile(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	resident := residentCommunityProfile("res-9", "comm-3")
	resident.UnitNumber = "4B"

	// community_id and unit_number must come from the profile, not the form.
	mock.ExpectExec("INSERT INTO maintenance_requests").
		WithArgs(sqlmock.AnyArg(), "Leaking faucet", "Under the sink", db.MaintenanceOpen, db.PriorityMedium,
			"comm-3", "res-9", "4B", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewMaintenanceService(database, NewNotifier(database))
	req, err := svc.CreateRequest(context.Background(), resident, MaintenanceInput{
		Title:       "Leaking faucet",
		Description: "Under the sink",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.Status != db.MaintenanceOpen {
		t.Errorf("expected new request to be Open, got %q", req.Status)
	}
	if req.CommunityID != "comm-3" || req.UnitNumber != "4B" {
		t.Errorf("expected profile-derived community/unit, got %q/%q", req.CommunityID, req.UnitNumber)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateRequest_RejectsUnknownPriority(t *testing.T) {
	database, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	svc := NewMaintenanceService(database, NewNotifier(database))
	_, err = svc.CreateRequest(context.Background(), residentCommunityProfile("res-1", "comm-1"), MaintenanceInput{
		Title:    "Leak",
		Priority: "Urgent",
	})
	if !errors.Is(err, authz.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestListRequests_ResidentScopedToOwn(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	mock.ExpectQuery("WHERE m.resident_id = \\$1").
		WithArgs("res-9").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "description", "status", "priority",
			"community_id", "resident_id", "assigned_to", "unit_number",
			"created_at", "updated_at", "completed_at", "name",
		}).AddRow("req-1", "Leak", "", db.MaintenanceOpen, db.PriorityMedium,
			"comm-3", "res-9", "", "4B", nowStamp(), nowStamp(), nil, "Pat Doyle"))

	svc := NewMaintenanceService(database, NewNotifier(database))
	requests, err := svc.ListRequests(context.Background(), residentCommunityProfile("res-9", "comm-3"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(requests) != 1 || requests[0].ResidentID != "res-9" {
		t.Errorf("expected only res-9's requests, got %+v", requests)
	}
}

func TestUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	database, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	svc := NewMaintenanceService(database, NewNotifier(database))
	_, err = svc.UpdateStatus(context.Background(), "req-1", MaintenanceStatusInput{Status: "Done"})
	if !errors.Is(err, authz.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	mock.ExpectExec("UPDATE maintenance_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))

	svc := NewMaintenanceService(database, NewNotifier(database))
	_, err = svc.UpdateStatus(context.Background(), "missing", MaintenanceStatusInput{Status: db.MaintenanceCompleted})
	if !errors.Is(err, authz.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
