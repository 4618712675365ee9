package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/proplio/api/authz"
	"github.com/proplio/api/db"
)

// MaintenanceService manages resident-filed maintenance requests.
type MaintenanceService struct {
	PG       *sql.DB
	Notifier *Notifier
}

func NewMaintenanceService(pg *sql.DB, notifier *Notifier) *MaintenanceService {
	return &MaintenanceService{PG: pg, Notifier: notifier}
}

// MaintenanceInput carries the resident-facing create form.
type MaintenanceInput struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// MaintenanceStatusInput carries a staff-side status/assignment change.
type MaintenanceStatusInput struct {
	Status     string `json:"status" binding:"required"`
	AssignedTo string `json:"assigned_to"`
}

func validMaintenanceStatus(s string) bool {
	switch s {
	case db.MaintenanceOpen, db.MaintenanceInProgress, db.MaintenanceCompleted:
		return true
	}
	return false
}

// CreateRequest files a new request owned by the resident. The community and
// unit come from the resident's profile, never the form.
func (s *MaintenanceService) CreateRequest(ctx context.Context, profile *authz.Profile, input MaintenanceInput) (*db.MaintenanceRequest, error) {
	if !profile.IsResident() {
		return nil, authz.ErrForbidden
	}
	if input.Priority == "" {
		input.Priority = db.PriorityMedium
	}
	if !validPriority(input.Priority) {
		return nil, fmt.Errorf("%w: priority %q", authz.ErrInvalidInput, input.Priority)
	}

	r := db.MaintenanceRequest{
		ID:          uuid.New().String(),
		Title:       input.Title,
		Description: input.Description,
		Status:      db.MaintenanceOpen,
		Priority:    input.Priority,
		CommunityID: profile.CommunityID,
		ResidentID:  profile.ID,
		UnitNumber:  profile.UnitNumber,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	_, err := s.PG.ExecContext(ctx, `
		INSERT INTO maintenance_requests (id, title, description, status, priority, community_id, resident_id, unit_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.ID, r.Title, r.Description, r.Status, r.Priority, r.CommunityID, r.ResidentID, r.UnitNumber, r.CreatedAt, r.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create maintenance request: %w", err)
	}
	return &r, nil
}

// ListRequests returns maintenance requests scoped to the caller: residents
// see only their own, non-admin staff see their linked communities.
func (s *MaintenanceService) ListRequests(ctx context.Context, profile *authz.Profile) ([]db.MaintenanceRequest, error) {
	query := `
		SELECT m.id, m.title, COALESCE(m.description, ''), m.status, m.priority,
		       m.community_id, m.resident_id, COALESCE(m.assigned_to, ''), m.unit_number,
		       m.created_at, m.updated_at, m.completed_at, r.name
		FROM maintenance_requests m
		JOIN residents r ON r.id = m.resident_id
	`
	var args []interface{}

	switch {
	case profile.IsResident():
		query += ` WHERE m.resident_id = $1`
		args = append(args, profile.ID)
	case profile.IsStaff() && authz.IsAdminRole(profile.Role):
		// No scoping.
	case profile.IsStaff():
		query += ` WHERE m.community_id IN (SELECT community_id FROM staff_communities WHERE staff_id = $1)`
		args = append(args, profile.ID)
	default:
		return nil, authz.ErrForbidden
	}

	query += ` ORDER BY m.created_at DESC`

	rows, err := s.PG.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance requests: %w", err)
	}
	defer rows.Close()

	requests := make([]db.MaintenanceRequest, 0)
	for rows.Next() {
		var m db.MaintenanceRequest
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Status, &m.Priority,
			&m.CommunityID, &m.ResidentID, &m.AssignedTo, &m.UnitNumber,
			&m.CreatedAt, &m.UpdatedAt, &m.CompletedAt, &m.ResidentName); err != nil {
			return nil, fmt.Errorf("failed to scan maintenance request: %w", err)
		}
		requests = append(requests, m)
	}
	return requests, rows.Err()
}

// GetRequest returns one maintenance request.
func (s *MaintenanceService) GetRequest(ctx context.Context, id string) (*db.MaintenanceRequest, error) {
	var m db.MaintenanceRequest
	err := s.PG.QueryRowContext(ctx, `
		SELECT m.id, m.title, COALESCE(m.description, ''), m.status, m.priority,
		       m.community_id, m.resident_id, COALESCE(m.assigned_to, ''), m.unit_number,
		       m.created_at, m.updated_at, m.completed_at, r.name
		FROM maintenance_requests m
		JOIN residents r ON r.id = m.resident_id
		WHERE m.id = $1
	`, id).Scan(&m.ID, &m.Title, &m.Description, &m.Status, &m.Priority,
		&m.CommunityID, &m.ResidentID, &m.AssignedTo, &m.UnitNumber,
		&m.CreatedAt, &m.UpdatedAt, &m.CompletedAt, &m.ResidentName)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, authz.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get maintenance request: %w", err)
	}
	return &m, nil
}

// UpdateStatus changes a request's status and optional staff assignment, and
// notifies the owning resident.
func (s *MaintenanceService) UpdateStatus(ctx context.Context, id string, input MaintenanceStatusInput) (*db.MaintenanceRequest, error) {
	if !validMaintenanceStatus(input.Status) {
		return nil, fmt.Errorf("%w: status %q", authz.ErrInvalidInput, input.Status)
	}

	var completedAt *time.Time
	if input.Status == db.MaintenanceCompleted {
		now := time.Now()
		completedAt = &now
	}

	result, err := s.PG.ExecContext(ctx, `
		UPDATE maintenance_requests
		SET status = $2, assigned_to = NULLIF($3, ''), completed_at = $4, updated_at = $5
		WHERE id = $1
	`, id, input.Status, input.AssignedTo, completedAt, time.Now())

	if err != nil {
		return nil, fmt.Errorf("failed to update maintenance request: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, authz.ErrNotFound
	}

	updated, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	s.Notifier.MaintenanceUpdated(ctx, updated)
	return updated, nil
}
