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

// ResidentService manages resident profiles.
type ResidentService struct {
	PG *sql.DB
}

func NewResidentService(pg *sql.DB) *ResidentService {
	return &ResidentService{PG: pg}
}

// ResidentInput carries create fields for a resident profile.
type ResidentInput struct {
	AccountID   string `json:"account_id"`
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone"`
	CommunityID string `json:"community_id" binding:"required"`
	UnitNumber  string `json:"unit_number" binding:"required"`
}

// ResidentUpdateInput carries the self-editable fields.
type ResidentUpdateInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ListResidents returns residents, optionally filtered to one community.
func (s *ResidentService) ListResidents(ctx context.Context, communityID string) ([]db.ResidentProfile, error) {
	query := `
		SELECT r.id, COALESCE(r.account_id, ''), r.name, r.email, COALESCE(r.phone, ''),
		       r.community_id, r.unit_number, r.created_at, r.updated_at, c.name
		FROM residents r
		JOIN communities c ON c.id = r.community_id
	`
	var args []interface{}
	if communityID != "" {
		query += ` WHERE r.community_id = $1`
		args = append(args, communityID)
	}
	query += ` ORDER BY c.name, r.unit_number`

	rows, err := s.PG.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list residents: %w", err)
	}
	defer rows.Close()

	residents := make([]db.ResidentProfile, 0)
	for rows.Next() {
		var r db.ResidentProfile
		if err := rows.Scan(&r.ID, &r.AccountID, &r.Name, &r.Email, &r.Phone,
			&r.CommunityID, &r.UnitNumber, &r.CreatedAt, &r.UpdatedAt, &r.CommunityName); err != nil {
			return nil, fmt.Errorf("failed to scan resident: %w", err)
		}
		residents = append(residents, r)
	}
	return residents, rows.Err()
}

// GetResident returns one resident profile.
func (s *ResidentService) GetResident(ctx context.Context, id string) (*db.ResidentProfile, error) {
	var r db.ResidentProfile
	err := s.PG.QueryRowContext(ctx, `
		SELECT r.id, COALESCE(r.account_id, ''), r.name, r.email, COALESCE(r.phone, ''),
		       r.community_id, r.unit_number, COALESCE(r.fcm_token, ''),
		       r.pref_task_assigned, r.pref_task_status, r.pref_maintenance_update, r.pref_announcements,
		       r.created_at, r.updated_at, c.name
		FROM residents r
		JOIN communities c ON c.id = r.community_id
		WHERE r.id = $1
	`, id).Scan(&r.ID, &r.AccountID, &r.Name, &r.Email, &r.Phone,
		&r.CommunityID, &r.UnitNumber, &r.FCMToken,
		&r.Preferences.TaskAssigned, &r.Preferences.TaskStatusChanged,
		&r.Preferences.MaintenanceUpdate, &r.Preferences.Announcements,
		&r.CreatedAt, &r.UpdatedAt, &r.CommunityName)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, authz.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get resident: %w", err)
	}
	return &r, nil
}

// CreateResident provisions a resident profile in a community.
func (s *ResidentService) CreateResident(ctx context.Context, input ResidentInput) (*db.ResidentProfile, error) {
	r := db.ResidentProfile{
		ID:          uuid.New().String(),
		AccountID:   input.AccountID,
		Name:        input.Name,
		Email:       input.Email,
		Phone:       input.Phone,
		CommunityID: input.CommunityID,
		UnitNumber:  input.UnitNumber,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	_, err := s.PG.ExecContext(ctx, `
		INSERT INTO residents (id, account_id, name, email, phone, community_id, unit_number, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9)
	`, r.ID, r.AccountID, r.Name, r.Email, r.Phone, r.CommunityID, r.UnitNumber, r.CreatedAt, r.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create resident: %w", err)
	}
	return &r, nil
}

// UpdateResident updates a resident's own profile fields.
func (s *ResidentService) UpdateResident(ctx context.Context, id string, input ResidentUpdateInput) (*db.ResidentProfile, error) {
	result, err := s.PG.ExecContext(ctx, `
		UPDATE residents SET name = $2, phone = $3, updated_at = $4 WHERE id = $1
	`, id, input.Name, input.Phone, time.Now())

	if err != nil {
		return nil, fmt.Errorf("failed to update resident: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, authz.ErrNotFound
	}
	return s.GetResident(ctx, id)
}

// UpdatePreferences replaces a resident's notification toggles.
func (s *ResidentService) UpdatePreferences(ctx context.Context, id string, prefs db.NotificationPreferences) error {
	result, err := s.PG.ExecContext(ctx, `
		UPDATE residents
		SET pref_task_assigned = $2, pref_task_status = $3,
		    pref_maintenance_update = $4, pref_announcements = $5, updated_at = $6
		WHERE id = $1
	`, id, prefs.TaskAssigned, prefs.TaskStatusChanged, prefs.MaintenanceUpdate, prefs.Announcements, time.Now())

	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return authz.ErrNotFound
	}
	return nil
}

// DeleteResident removes a resident profile. Admin-only at the route.
func (s *ResidentService) DeleteResident(ctx context.Context, id string) error {
	result, err := s.PG.ExecContext(ctx, `DELETE FROM residents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete resident: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return authz.ErrNotFound
	}
	return nil
}
