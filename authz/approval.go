package authz

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/proplio/api/db"
)

// ApprovalService runs the staff-access workflow: an incomplete or resident
// account requests a role, an admin approves or rejects, and approval mints
// (or upgrades) the staff profile. The one exception is the first-admin
// bootstrap, open only while zero Admin profiles exist.
type ApprovalService struct {
	pg *sql.DB
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(pg *sql.DB) *ApprovalService {
	return &ApprovalService{pg: pg}
}

// RequestStaffAccessInput carries a self-service staff access request.
type RequestStaffAccessInput struct {
	AccountID     string `json:"account_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	RequestedRole Role   `json:"requested_role"`
}

// RequestStaffAccess files a pending request for the account. At most one
// pending request may exist per account; the guard is a conditional insert,
// so two concurrent submissions cannot both land.
func (s *ApprovalService) RequestStaffAccess(ctx context.Context, input RequestStaffAccessInput) (*db.StaffApprovalRequest, error) {
	if input.AccountID == "" || input.Email == "" {
		return nil, ErrInvalidInput
	}
	if !ValidRole(input.RequestedRole) || IsAdminRole(input.RequestedRole) {
		// Admin roles are never self-requestable.
		return nil, fmt.Errorf("%w: role %q cannot be requested", ErrInvalidInput, input.RequestedRole)
	}

	req := db.StaffApprovalRequest{
		ID:            uuid.New().String(),
		AccountID:     input.AccountID,
		Name:          input.Name,
		Email:         input.Email,
		RequestedRole: string(input.RequestedRole),
		Status:        db.ApprovalPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	// Check-and-insert in one statement: the NOT EXISTS guard and the insert
	// are evaluated atomically, so the duplicate-pending invariant holds
	// under concurrent submissions.
	result, err := s.pg.ExecContext(ctx, `
		INSERT INTO staff_approval_requests (id, account_id, name, email, requested_role, status, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE NOT EXISTS (
			SELECT 1 FROM staff_approval_requests
			WHERE account_id = $2 AND status = $6
		)
	`, req.ID, req.AccountID, req.Name, req.Email, req.RequestedRole, req.Status, req.CreatedAt, req.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create staff access request: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrDuplicatePendingRequest
	}
	return &req, nil
}

// ListRequests returns approval requests for the admin screen, newest first.
func (s *ApprovalService) ListRequests(ctx context.Context, approver *Profile) ([]db.StaffApprovalRequest, error) {
	if !approver.IsStaff() || !IsAdminRole(approver.Role) {
		return nil, ErrForbidden
	}

	rows, err := s.pg.QueryContext(ctx, `
		SELECT id, account_id, name, email, requested_role, status, created_at, updated_at
		FROM staff_approval_requests
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval requests: %w", err)
	}
	defer rows.Close()

	requests := make([]db.StaffApprovalRequest, 0)
	for rows.Next() {
		var r db.StaffApprovalRequest
		if err := rows.Scan(&r.ID, &r.AccountID, &r.Name, &r.Email, &r.RequestedRole, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// Approve marks the request approved and creates or upgrades the staff
// profile for the requesting account, in a single transaction: no state is
// observable where one change happened without the other. Returns the
// approved account id so callers can drop stale cached profiles.
func (s *ApprovalService) Approve(ctx context.Context, approver *Profile, requestID string) (string, error) {
	if !approver.IsStaff() || !IsAdminRole(approver.Role) {
		return "", ErrForbidden
	}

	tx, err := s.pg.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin approval transaction: %w", err)
	}
	defer tx.Rollback()

	var req db.StaffApprovalRequest
	err = tx.QueryRowContext(ctx, `
		SELECT id, account_id, name, email, requested_role
		FROM staff_approval_requests
		WHERE id = $1 AND status = $2
		FOR UPDATE
	`, requestID, db.ApprovalPending).Scan(&req.ID, &req.AccountID, &req.Name, &req.Email, &req.RequestedRole)

	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load approval request: %w", err)
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE staff_approval_requests
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, req.ID, db.ApprovalApproved, now); err != nil {
		return "", fmt.Errorf("failed to mark request approved: %w", err)
	}

	// Create the staff profile, or upgrade the one already bound to the
	// account (e.g. a repeat approval after a role change request).
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO staff (id, account_id, name, email, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (account_id)
		DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at
	`, uuid.New().String(), req.AccountID, req.Name, req.Email, req.RequestedRole, now); err != nil {
		return "", fmt.Errorf("failed to create staff profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit approval: %w", err)
	}
	return req.AccountID, nil
}

// Reject marks a pending request rejected.
func (s *ApprovalService) Reject(ctx context.Context, approver *Profile, requestID string) error {
	if !approver.IsStaff() || !IsAdminRole(approver.Role) {
		return ErrForbidden
	}

	result, err := s.pg.ExecContext(ctx, `
		UPDATE staff_approval_requests
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
	`, requestID, db.ApprovalRejected, time.Now(), db.ApprovalPending)

	if err != nil {
		return fmt.Errorf("failed to reject request: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// BootstrapAdminInput carries the one-time first-admin creation form.
type BootstrapAdminInput struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// bootstrapLockID serializes first-admin creation across connections. No
// unique constraint bounds the admin count, and under READ COMMITTED two
// concurrent NOT EXISTS probes each snapshot a zero-admin world, so the probe
// and insert must run behind a lock.
const bootstrapLockID = 874201

// BootstrapFirstAdmin creates the very first Admin staff profile. The path is
// open to anyone, but only while zero Admin profiles exist; concurrent
// attempts queue on an advisory lock, so the loser sees the winner's
// committed row and gets the closed window.
func (s *ApprovalService) BootstrapFirstAdmin(ctx context.Context, input BootstrapAdminInput) (*db.StaffProfile, error) {
	if input.Name == "" || input.Email == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	staff := db.StaffProfile{
		ID:        uuid.New().String(),
		AccountID: input.AccountID,
		Name:      input.Name,
		Email:     input.Email,
		Role:      string(RoleAdmin),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	tx, err := s.pg.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin bootstrap transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockID); err != nil {
		return nil, fmt.Errorf("failed to serialize bootstrap attempts: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO staff (id, account_id, name, email, role, password_hash, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE NOT EXISTS (
			SELECT 1 FROM staff WHERE role IN ($5, $9)
		)
	`, staff.ID, staff.AccountID, staff.Name, staff.Email, staff.Role, string(hashed), staff.CreatedAt, staff.UpdatedAt, string(RoleSuperAdmin))

	if err != nil {
		return nil, fmt.Errorf("failed to create first admin: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrBootstrapWindowClosed
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit first admin: %w", err)
	}
	return &staff, nil
}

// AdminExists reports whether the bootstrap window has closed. Errors report
// the window as closed: the probe fails closed like every other check here.
func (s *ApprovalService) AdminExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.pg.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM staff WHERE role IN ($1, $2))
	`, string(RoleAdmin), string(RoleSuperAdmin)).Scan(&exists)

	if err != nil {
		return true, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	return exists, nil
}
