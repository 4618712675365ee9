package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// SimpleProfileLoader implements ProfileLoader with direct SQL queries.
type SimpleProfileLoader struct {
	db *sql.DB
}

// NewSimpleProfileLoader creates a new SimpleProfileLoader
func NewSimpleProfileLoader(db *sql.DB) *SimpleProfileLoader {
	return &SimpleProfileLoader{db: db}
}

// Ensure SimpleProfileLoader implements ProfileLoader
var _ ProfileLoader = (*SimpleProfileLoader)(nil)

// ResolveProfile looks up the staff profile for the account first, then the
// resident profile. If a corrupt dataset holds both, the staff profile wins:
// the tie-break is deterministic, never ambiguous.
func (l *SimpleProfileLoader) ResolveProfile(ctx context.Context, accountID string) (*Profile, error) {
	if accountID == "" {
		return nil, nil
	}

	staff, err := l.lookupStaff(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if staff != nil {
		return staff, nil
	}

	resident, err := l.lookupResident(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if resident != nil {
		return resident, nil
	}

	// Authenticated but no profile: the account belongs in the approval
	// workflow, not on an error page.
	return nil, nil
}

func (l *SimpleProfileLoader) lookupStaff(ctx context.Context, accountID string) (*Profile, error) {
	var p Profile
	var role string
	err := l.db.QueryRowContext(ctx, `
		SELECT id, account_id, name, email, role, created_at
		FROM staff
		WHERE account_id = $1
	`, accountID).Scan(&p.ID, &p.AccountID, &p.Name, &p.Email, &role, &p.CreatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	p.Kind = KindStaff
	p.Role = Role(role)
	return &p, nil
}

func (l *SimpleProfileLoader) lookupResident(ctx context.Context, accountID string) (*Profile, error) {
	var p Profile
	err := l.db.QueryRowContext(ctx, `
		SELECT id, account_id, name, email, community_id, unit_number, created_at
		FROM residents
		WHERE account_id = $1
	`, accountID).Scan(&p.ID, &p.AccountID, &p.Name, &p.Email, &p.CommunityID, &p.UnitNumber, &p.CreatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	p.Kind = KindResident
	return &p, nil
}
