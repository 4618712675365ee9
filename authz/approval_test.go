package authz

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/proplio/api/db"
)

func TestRequestStaffAccess(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	mock.ExpectExec("INSERT INTO staff_approval_requests").
		WithArgs(sqlmock.AnyArg(), "acct-1", "Dana Reyes", "dana@example.com", "Community Manager", db.ApprovalPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewApprovalService(database)
	req, err := svc.RequestStaffAccess(context.Background(), RequestStaffAccessInput{
		AccountID:     "acct-1",
		Name:          "Dana Reyes",
		Email:         "dana@example.com",
		RequestedRole: RoleManager,
	})
	if err != nil {
		t.Fatalf("RequestStaffAccess returned error: %v", err)
	}
	if req.Status != db.ApprovalPending {
		t.Errorf("Status = %v, want %v", req.Status, db.ApprovalPending)
	}
	if req.RequestedRole != string(RoleManager) {
		t.Errorf("RequestedRole = %v, want %v", req.RequestedRole, RoleManager)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRequestStaffAccess_DuplicatePending(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	// The NOT EXISTS guard swallowed the insert: zero rows affected.
	mock.ExpectExec("INSERT INTO staff_approval_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))

	svc := NewApprovalService(database)
	_, err = svc.RequestStaffAccess(context.Background(), RequestStaffAccessInput{
		AccountID:     "acct-1",
		Name:          "Dana Reyes",
		Email:         "dana@example.com",
		RequestedRole: RoleManager,
	})
	if !errors.Is(err, ErrDuplicatePendingRequest) {
		t.Errorf("expected ErrDuplicatePendingRequest, got %v", err)
	}
}

func TestRequestStaffAccess_RejectsAdminRoles(t *testing.T) {
	database, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	svc := NewApprovalService(database)
	for _, role := range []Role{RoleAdmin, RoleSuperAdmin, Role("Owner"), Role("")} {
		_, err := svc.RequestStaffAccess(context.Background(), RequestStaffAccessInput{
			AccountID:     "acct-1",
			Name:          "Dana Reyes",
			Email:         "dana@example.com",
			RequestedRole: role,
		})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("role %q: expected ErrInvalidInput, got %v", role, err)
		}
	}
}

func TestApprove(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("req-1", db.ApprovalPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "name", "email", "requested_role"}).
			AddRow("req-1", "acct-1", "Dana Reyes", "dana@example.com", "Community Manager"))
	mock.ExpectExec("UPDATE staff_approval_requests").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO staff").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	svc := NewApprovalService(database)
	admin := staffProfile("staff-admin", RoleAdmin)
	accountID, err := svc.Approve(context.Background(), admin, "req-1")
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if accountID != "acct-1" {
		t.Errorf("accountID = %v, want acct-1", accountID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApprove_NotPending(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("req-2", db.ApprovalPending).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	svc := NewApprovalService(database)
	admin := staffProfile("staff-admin", RoleAdmin)
	if _, err := svc.Approve(context.Background(), admin, "req-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestApprove_RequiresAdmin(t *testing.T) {
	database, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	svc := NewApprovalService(database)

	callers := []*Profile{
		nil,
		staffProfile("staff-1", RoleManager),
		residentProfile("res-1", "comm-1"),
	}
	for _, caller := range callers {
		if _, err := svc.Approve(context.Background(), caller, "req-1"); !errors.Is(err, ErrForbidden) {
			t.Errorf("caller %+v: expected ErrForbidden, got %v", caller, err)
		}
		if _, err := svc.ListRequests(context.Background(), caller); !errors.Is(err, ErrForbidden) {
			t.Errorf("caller %+v: expected ErrForbidden from ListRequests, got %v", caller, err)
		}
		if err := svc.Reject(context.Background(), caller, "req-1"); !errors.Is(err, ErrForbidden) {
			t.Errorf("caller %+v: expected ErrForbidden from Reject, got %v", caller, err)
		}
	}
}

func TestReject_AlreadyResolved(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	mock.ExpectExec("UPDATE staff_approval_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))

	svc := NewApprovalService(database)
	admin := staffProfile("staff-admin", RoleSuperAdmin)
	if err := svc.Reject(context.Background(), admin, "req-3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBootstrapFirstAdmin(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	// The advisory lock must be taken before the guarded insert runs.
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(bootstrapLockID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO staff").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	svc := NewApprovalService(database)
	staff, err := svc.BootstrapFirstAdmin(context.Background(), BootstrapAdminInput{
		AccountID: "acct-1",
		Name:      "First Admin",
		Email:     "admin@example.com",
		Password:  "a-strong-password",
	})
	if err != nil {
		t.Fatalf("BootstrapFirstAdmin returned error: %v", err)
	}
	if staff.Role != string(RoleAdmin) {
		t.Errorf("Role = %v, want %v", staff.Role, RoleAdmin)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBootstrapFirstAdmin_WindowClosed(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	// A racing attempt queued on the advisory lock sees the winner's
	// committed admin once the lock is granted: the guarded insert affects
	// zero rows and nothing is committed.
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs(bootstrapLockID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO staff").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	svc := NewApprovalService(database)
	_, err = svc.BootstrapFirstAdmin(context.Background(), BootstrapAdminInput{
		AccountID: "acct-2",
		Name:      "Second Admin",
		Email:     "second@example.com",
		Password:  "a-strong-password",
	})
	if !errors.Is(err, ErrBootstrapWindowClosed) {
		t.Errorf("expected ErrBootstrapWindowClosed, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAdminExists_FailsClosed(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnError(errors.New("connection refused"))

	svc := NewApprovalService(database)
	exists, err := svc.AdminExists(context.Background())
	if !exists {
		t.Error("a failed probe must report the window as closed")
	}
	if !errors.Is(err, ErrLookupFailed) {
		t.Errorf("expected ErrLookupFailed, got %v", err)
	}
}
