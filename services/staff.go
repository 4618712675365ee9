package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/proplio/api/authz"
	"github.com/proplio/api/db"
)

// StaffService manages the staff directory and per-staff settings.
type StaffService struct {
	PG *sql.DB
}

func NewStaffService(pg *sql.DB) *StaffService {
	return &StaffService{PG: pg}
}

// StaffUpdateInput carries the self-editable profile fields. Role is absent
// on purpose: role changes only happen through the approval workflow or an
// admin role update.
type StaffUpdateInput struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	AvatarURL string `json:"avatar_url"`
}

// ListStaff returns the staff directory, newest first.
func (s *StaffService) ListStaff(ctx context.Context) ([]db.StaffProfile, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT id, COALESCE(account_id, ''), name, email, role,
		       COALESCE(phone, ''), COALESCE(avatar_url, ''), created_at, updated_at
		FROM staff
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	staff := make([]db.StaffProfile, 0)
	for rows.Next() {
		var p db.StaffProfile
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Name, &p.Email, &p.Role,
			&p.Phone, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan staff profile: %w", err)
		}
		staff = append(staff, p)
	}
	return staff, rows.Err()
}

// GetStaff returns one staff profile with their community links.
func (s *StaffService) GetStaff(ctx context.Context, id string) (*db.StaffProfile, error) {
	var p db.StaffProfile
	err := s.PG.QueryRowContext(ctx, `
		SELECT id, COALESCE(account_id, ''), name, email, role,
		       COALESCE(phone, ''), COALESCE(avatar_url, ''), COALESCE(fcm_token, ''),
		       pref_task_assigned, pref_task_status, pref_maintenance_update, pref_announcements,
		       created_at, updated_at
		FROM staff
		WHERE id = $1
	`, id).Scan(&p.ID, &p.AccountID, &p.Name, &p.Email, &p.Role,
		&p.Phone, &p.AvatarURL, &p.FCMToken,
		&p.Preferences.TaskAssigned, &p.Preferences.TaskStatusChanged,
		&p.Preferences.MaintenanceUpdate, &p.Preferences.Announcements,
		&p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, authz.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get staff profile: %w", err)
	}

	communities, err := s.staffCommunities(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Communities = communities

	return &p, nil
}

// UpdateStaff updates a staff member's own profile fields.
func (s *StaffService) UpdateStaff(ctx context.Context, id string, input StaffUpdateInput) (*db.StaffProfile, error) {
	result, err := s.PG.ExecContext(ctx, `
		UPDATE staff
		SET name = $2, phone = $3, avatar_url = $4, updated_at = $5
		WHERE id = $1
	`, id, input.Name, input.Phone, input.AvatarURL, time.Now())

	if err != nil {
		return nil, fmt.Errorf("failed to update staff profile: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, authz.ErrNotFound
	}
	return s.GetStaff(ctx, id)
}

// UpdateStaffRole changes a staff member's role. Admin-only at the route.
func (s *StaffService) UpdateStaffRole(ctx context.Context, id string, role authz.Role) (*db.StaffProfile, error) {
	if !authz.ValidRole(role) {
		return nil, fmt.Errorf("%w: role %q", authz.ErrInvalidInput, role)
	}

	result, err := s.PG.ExecContext(ctx, `
		UPDATE staff SET role = $2, updated_at = $3 WHERE id = $1
	`, id, string(role), time.Now())

	if err != nil {
		return nil, fmt.Errorf("failed to update staff role: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, authz.ErrNotFound
	}
	return s.GetStaff(ctx, id)
}

// UpdatePreferences replaces a staff member's notification toggles.
func (s *StaffService) UpdatePreferences(ctx context.Context, id string, prefs db.NotificationPreferences) error {
	result, err := s.PG.ExecContext(ctx, `
		UPDATE staff
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

// DeleteStaff removes a staff profile. Admin-only at the route.
func (s *StaffService) DeleteStaff(ctx context.Context, id string) error {
	result, err := s.PG.ExecContext(ctx, `DELETE FROM staff WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete staff profile: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return authz.ErrNotFound
	}
	return nil
}

func (s *StaffService) staffCommunities(ctx context.Context, staffID string) ([]db.Community, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT c.id, c.name, c.address, c.city, c.state, c.zip, c.units, c.created_at, c.updated_at
		FROM communities c
		JOIN staff_communities sc ON sc.community_id = c.id
		WHERE sc.staff_id = $1
		ORDER BY c.name
	`, staffID)

	if err != nil {
		return nil, fmt.Errorf("failed to list staff communities: %w", err)
	}
	defer rows.Close()

	communities := make([]db.Community, 0)
	for rows.Next() {
		var c db.Community
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.City, &c.State, &c.Zip, &c.Units,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan community: %w", err)
		}
		communities = append(communities, c)
	}
	return communities, rows.Err()
}
