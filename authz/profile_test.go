package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestResolveProfile_Staff(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, account_id, name, email, role, created_at").
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "name", "email", "role", "created_at"}).
			AddRow("staff-1", "acct-1", "Dana Reyes", "dana@example.com", "Community Manager", created))

	loader := NewSimpleProfileLoader(db)
	profile, err := loader.ResolveProfile(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("ResolveProfile returned error: %v", err)
	}
	if !profile.IsStaff() {
		t.Fatalf("expected staff profile, got %+v", profile)
	}
	if profile.Role != RoleManager {
		t.Errorf("Role = %v, want %v", profile.Role, RoleManager)
	}
	if profile.ID != "staff-1" || profile.AccountID != "acct-1" {
		t.Errorf("unexpected identity: %+v", profile)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolveProfile_ResidentFallback(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	created := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM staff").
		WithArgs("acct-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "name", "email", "role", "created_at"}))
	mock.ExpectQuery("FROM residents").
		WithArgs("acct-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "name", "email", "community_id", "unit_number", "created_at"}).
			AddRow("res-1", "acct-2", "Sam Liu", "sam@example.com", "comm-1", "4B", created))

	loader := NewSimpleProfileLoader(db)
	profile, err := loader.ResolveProfile(context.Background(), "acct-2")
	if err != nil {
		t.Fatalf("ResolveProfile returned error: %v", err)
	}
	if !profile.IsResident() {
		t.Fatalf("expected resident profile, got %+v", profile)
	}
	if profile.CommunityID != "comm-1" || profile.UnitNumber != "4B" {
		t.Errorf("unexpected resident fields: %+v", profile)
	}
	if profile.Role != "" {
		t.Errorf("resident profile carries staff role %q", profile.Role)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolveProfile_StaffWinsOverResident(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	// Both rows exist; only the staff table is consulted.
	mock.ExpectQuery("FROM staff").
		WithArgs("acct-3").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "name", "email", "role", "created_at"}).
			AddRow("staff-3", "acct-3", "Pat Ito", "pat@example.com", "Admin", time.Now()))

	loader := NewSimpleProfileLoader(db)
	profile, err := loader.ResolveProfile(context.Background(), "acct-3")
	if err != nil {
		t.Fatalf("ResolveProfile returned error: %v", err)
	}
	if !profile.IsStaff() {
		t.Fatalf("expected staff to win the tie-break, got %+v", profile)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResolveProfile_NoProfile(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM staff").
		WithArgs("acct-4").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "name", "email", "role", "created_at"}))
	mock.ExpectQuery("FROM residents").
		WithArgs("acct-4").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "name", "email", "community_id", "unit_number", "created_at"}))

	loader := NewSimpleProfileLoader(db)
	profile, err := loader.ResolveProfile(context.Background(), "acct-4")
	if err != nil {
		t.Fatalf("no profile must not be an error, got: %v", err)
	}
	if profile != nil {
		t.Errorf("expected nil profile, got %+v", profile)
	}
}

func TestResolveProfile_LookupFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM staff").
		WithArgs("acct-5").
		WillReturnError(errors.New("connection refused"))

	loader := NewSimpleProfileLoader(db)
	profile, err := loader.ResolveProfile(context.Background(), "acct-5")
	if profile != nil {
		t.Errorf("expected nil profile on failure, got %+v", profile)
	}
	if !errors.Is(err, ErrLookupFailed) {
		t.Errorf("expected ErrLookupFailed, got %v", err)
	}
}

func TestResolveProfile_EmptyAccountID(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer db.Close()

	loader := NewSimpleProfileLoader(db)
	profile, err := loader.ResolveProfile(context.Background(), "")
	if err != nil || profile != nil {
		t.Errorf("empty account id should resolve to (nil, nil), got (%+v, %v)", profile, err)
	}
}

func TestProfileKindHelpers_NilSafe(t *testing.T) {
	var p *Profile
	if p.IsStaff() || p.IsResident() {
		t.Error("nil profile must be neither staff nor resident")
	}
}
