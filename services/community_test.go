package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/proplio/api/authz"
)

func nowStamp() time.Time { return time.Now() }

func adminProfile() *authz.Profile {
	return &authz.Profile{Kind: authz.KindStaff, ID: "staff-admin", Role: authz.RoleAdmin}
}

func managerProfile(id string) *authz.Profile {
	return &authz.Profile{Kind: authz.KindStaff, ID: id, Role: authz.RoleManager}
}

func residentCommunityProfile(id, communityID string) *authz.Profile {
	return &authz.Profile{Kind: authz.KindResident, ID: id, CommunityID: communityID}
}

func communityRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "address", "city", "state", "zip", "units",
		"created_at", "updated_at", "staff_count", "resident_count",
	})
}

func TestListCommunities_AdminSeesAll(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	// Admins get the unscoped query: no WHERE, no args.
	mock.ExpectQuery("FROM communities c\\s+ORDER BY c.name").
		WillReturnRows(communityRows().
			AddRow("comm-1", "Oakwood", "1 Oak St", "Austin", "TX", "73301", 120, nowStamp(), nowStamp(), 3, 40).
			AddRow("comm-2", "Pinecrest", "2 Pine Rd", "Austin", "TX", "73301", 80, nowStamp(), nowStamp(), 2, 25))

	svc := NewCommunityService(database)
	communities, err := svc.ListCommunities(context.Background(), adminProfile())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(communities) != 2 {
		t.Errorf("expected 2 communities, got %d", len(communities))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListCommunities_StaffScopedToLinks(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	mock.ExpectQuery("WHERE c.id IN \\(SELECT community_id FROM staff_communities").
		WithArgs("staff-7").
		WillReturnRows(communityRows().
			AddRow("comm-1", "Oakwood", "1 Oak St", "Austin", "TX", "73301", 120, nowStamp(), nowStamp(), 3, 40))

	svc := NewCommunityService(database)
	communities, err := svc.ListCommunities(context.Background(), managerProfile("staff-7"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(communities) != 1 {
		t.Errorf("expected 1 community, got %d", len(communities))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListCommunities_NonStaffForbidden(t *testing.T) {
	database, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	svc := NewCommunityService(database)
	// Residents read their own community elsewhere; the listing is staff-only.
	for _, caller := range []*authz.Profile{nil, residentCommunityProfile("res-1", "comm-2")} {
		if _, err := svc.ListCommunities(context.Background(), caller); !errors.Is(err, authz.ErrForbidden) {
			t.Errorf("caller %+v: expected ErrForbidden, got %v", caller, err)
		}
	}
}

func TestUpdateCommunity_NotFound(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	mock.ExpectExec("UPDATE communities").
		WillReturnResult(sqlmock.NewResult(0, 0))

	svc := NewCommunityService(database)
	_, err = svc.UpdateCommunity(context.Background(), "missing", CommunityInput{Name: "Oakwood"})
	if !errors.Is(err, authz.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignStaff_RejectsUnknownLinkRole(t *testing.T) {
	database, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	svc := NewCommunityService(database)
	err = svc.AssignStaff(context.Background(), "comm-1", "staff-1", "owner")
	if !errors.Is(err, authz.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAssignStaff_UpsertsLinkRole(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	mock.ExpectExec("ON CONFLICT \\(staff_id, community_id\\)").
		WithArgs("staff-1", "comm-1", "manager", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	svc := NewCommunityService(database)
	if err := svc.AssignStaff(context.Background(), "comm-1", "staff-1", "manager"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRemoveStaff_MissingLinkNotFound(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer database.Close()

	mock.ExpectExec("DELETE FROM staff_communities").
		WithArgs("staff-1", "comm-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	svc := NewCommunityService(database)
	err = svc.RemoveStaff(context.Background(), "comm-1", "staff-1")
	if !errors.Is(err, authz.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
