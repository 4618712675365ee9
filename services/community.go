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

// CommunityService manages communities and staff-community assignments.
type CommunityService struct {
	PG *sql.DB
}

func NewCommunityService(pg *sql.DB) *CommunityService {
	return &CommunityService{PG: pg}
}

// CommunityInput carries create/update fields for a community.
type CommunityInput struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Units   int    `json:"units"`
}

// ListCommunities returns the communities visible to the staff profile:
// admins see all, other staff see their linked communities. Residents never
// reach this listing; they read their own community through GetCommunity.
func (s *CommunityService) ListCommunities(ctx context.Context, profile *authz.Profile) ([]db.Community, error) {
	query := `
		SELECT c.id, c.name, c.address, c.city, c.state, c.zip, c.units, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM staff_communities sc WHERE sc.community_id = c.id) AS staff_count,
		       (SELECT COUNT(*) FROM residents r WHERE r.community_id = c.id) AS resident_count
		FROM communities c
	`
	var args []interface{}

	switch {
	case profile.IsStaff() && authz.IsAdminRole(profile.Role):
		// No scoping.
	case profile.IsStaff():
		query += ` WHERE c.id IN (SELECT community_id FROM staff_communities WHERE staff_id = $1)`
		args = append(args, profile.ID)
	default:
		return nil, authz.ErrForbidden
	}

	query += ` ORDER BY c.name`

	rows, err := s.PG.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list communities: %w", err)
	}
	defer rows.Close()

	communities := make([]db.Community, 0)
	for rows.Next() {
		var c db.Community
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.City, &c.State, &c.Zip, &c.Units,
			&c.CreatedAt, &c.UpdatedAt, &c.StaffCount, &c.ResidentCount); err != nil {
			return nil, fmt.Errorf("failed to scan community: %w", err)
		}
		communities = append(communities, c)
	}
	return communities, rows.Err()
}

// GetCommunity returns one community by id.
func (s *CommunityService) GetCommunity(ctx context.Context, id string) (*db.Community, error) {
	var c db.Community
	err := s.PG.QueryRowContext(ctx, `
		SELECT c.id, c.name, c.address, c.city, c.state, c.zip, c.units, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM staff_communities sc WHERE sc.community_id = c.id) AS staff_count,
		       (SELECT COUNT(*) FROM residents r WHERE r.community_id = c.id) AS resident_count
		FROM communities c
		WHERE c.id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Address, &c.City, &c.State, &c.Zip, &c.Units,
		&c.CreatedAt, &c.UpdatedAt, &c.StaffCount, &c.ResidentCount)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, authz.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get community: %w", err)
	}
	return &c, nil
}

// CreateCommunity creates a community. Route-level authz already required an
// admin-level role.
func (s *CommunityService) CreateCommunity(ctx context.Context, input CommunityInput) (*db.Community, error) {
	c := db.Community{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Address:   input.Address,
		City:      input.City,
		State:     input.State,
		Zip:       input.Zip,
		Units:     input.Units,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	_, err := s.PG.ExecContext(ctx, `
		INSERT INTO communities (id, name, address, city, state, zip, units, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.Name, c.Address, c.City, c.State, c.Zip, c.Units, c.CreatedAt, c.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create community: %w", err)
	}
	return &c, nil
}

// UpdateCommunity updates a community's fields.
func (s *CommunityService) UpdateCommunity(ctx context.Context, id string, input CommunityInput) (*db.Community, error) {
	result, err := s.PG.ExecContext(ctx, `
		UPDATE communities
		SET name = $2, address = $3, city = $4, state = $5, zip = $6, units = $7, updated_at = $8
		WHERE id = $1
	`, id, input.Name, input.Address, input.City, input.State, input.Zip, input.Units, time.Now())

	if err != nil {
		return nil, fmt.Errorf("failed to update community: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, authz.ErrNotFound
	}
	return s.GetCommunity(ctx, id)
}

// DeleteCommunity removes a community and its dependent rows (links cascade).
func (s *CommunityService) DeleteCommunity(ctx context.Context, id string) error {
	result, err := s.PG.ExecContext(ctx, `DELETE FROM communities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete community: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return authz.ErrNotFound
	}
	return nil
}

// AssignStaff links a staff member to a community. Re-assigning an existing
// link updates the link role instead of erroring.
func (s *CommunityService) AssignStaff(ctx context.Context, communityID, staffID, linkRole string) error {
	if linkRole != "manager" && linkRole != "assistant" {
		return fmt.Errorf("%w: link role %q", authz.ErrInvalidInput, linkRole)
	}

	_, err := s.PG.ExecContext(ctx, `
		INSERT INTO staff_communities (staff_id, community_id, link_role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (staff_id, community_id)
		DO UPDATE SET link_role = EXCLUDED.link_role
	`, staffID, communityID, linkRole, time.Now())

	if err != nil {
		return fmt.Errorf("failed to assign staff to community: %w", err)
	}
	return nil
}

// RemoveStaff unlinks a staff member from a community.
func (s *CommunityService) RemoveStaff(ctx context.Context, communityID, staffID string) error {
	result, err := s.PG.ExecContext(ctx, `
		DELETE FROM staff_communities WHERE staff_id = $1 AND community_id = $2
	`, staffID, communityID)

	if err != nil {
		return fmt.Errorf("failed to remove staff from community: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return authz.ErrNotFound
	}
	return nil
}

// ListCommunityStaff returns the staff linked to a community.
func (s *CommunityService) ListCommunityStaff(ctx context.Context, communityID string) ([]db.StaffCommunityLink, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT sc.staff_id, sc.community_id, sc.link_role, sc.created_at, s.name
		FROM staff_communities sc
		JOIN staff s ON s.id = sc.staff_id
		WHERE sc.community_id = $1
		ORDER BY s.name
	`, communityID)

	if err != nil {
		return nil, fmt.Errorf("failed to list community staff: %w", err)
	}
	defer rows.Close()

	links := make([]db.StaffCommunityLink, 0)
	for rows.Next() {
		var l db.StaffCommunityLink
		if err := rows.Scan(&l.StaffID, &l.CommunityID, &l.LinkRole, &l.CreatedAt, &l.StaffName); err != nil {
			return nil, fmt.Errorf("failed to scan community staff link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
