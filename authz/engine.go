package authz

import (
	"context"
	"database/sql"
	"log"
)

// Authorizer answers one question: "may this profile perform this action?"
// The interface exists so handlers and middleware can be tested against a
// fake without a database.
type Authorizer interface {
	// CanAccess decides (profile, category, action, resource instance).
	// resourceID may be empty for route-level category checks and for
	// creates where the instance does not exist yet.
	CanAccess(ctx context.Context, profile *Profile, category Category, action Action, resourceID string) bool
}

// Engine is the SQL-backed Authorizer. Ownership lookups (task assignment,
// community links, maintenance request ownership) are single round trips;
// any lookup error answers deny. Ambiguous or failed checks never default
// to allow.
type Engine struct {
	db *sql.DB
}

// NewEngine creates a new authorization Engine on the given database.
func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// Ensure Engine implements Authorizer
var _ Authorizer = (*Engine)(nil)

// CanAccess evaluates the access rules in order; the first matching rule
// decides and anything unmatched is denied.
func (e *Engine) CanAccess(ctx context.Context, profile *Profile, category Category, action Action, resourceID string) bool {
	// No resolved profile: deny everything. Requesting staff access is the
	// one thing an incomplete account may do, and that path does not go
	// through the engine.
	if profile == nil {
		return false
	}

	switch profile.Kind {
	case KindStaff:
		return e.staffCanAccess(ctx, profile, category, action, resourceID)
	case KindResident:
		return e.residentCanAccess(ctx, profile, category, action, resourceID)
	default:
		return false
	}
}

func (e *Engine) staffCanAccess(ctx context.Context, profile *Profile, category Category, action Action, resourceID string) bool {
	tableAllows := HasPermission(profile.Role, category, action)

	// Ownership widening for tasks: staff always edit tasks they created or
	// are assigned to, even when the role table denies task edit broadly.
	// The widening is an OR, not a restriction on roles the table permits.
	if category == CategoryTasks && action == ActionEdit && resourceID != "" {
		if e.ownsTask(ctx, profile.ID, resourceID) {
			return true
		}
		if !tableAllows {
			return false
		}
		// Broad task edit still requires a link to the task's community
		// unless the role is admin-level.
		if IsAdminRole(profile.Role) {
			return true
		}
		return e.linkedToTaskCommunity(ctx, profile.ID, resourceID)
	}

	// The capability table is a hard ceiling for everything else.
	if !tableAllows {
		return false
	}

	// Per-instance community scoping: view/edit on a specific community
	// requires a staff_communities link; admin-level roles have global reach.
	if category == CategoryCommunities && (action == ActionView || action == ActionEdit) && resourceID != "" {
		if IsAdminRole(profile.Role) {
			return true
		}
		return e.linkedToCommunity(ctx, profile.ID, resourceID)
	}

	return true
}

func (e *Engine) residentCanAccess(ctx context.Context, profile *Profile, category Category, action Action, resourceID string) bool {
	// Staff-only surfaces are denied to residents regardless of instance.
	if StaffOnlyCategory(category) {
		return false
	}

	switch category {
	case CategoryCommunities:
		// A resident sees exactly their own community.
		return action == ActionView && resourceID != "" && resourceID == profile.CommunityID

	case CategoryMaintenance:
		switch action {
		case ActionCreate:
			// New requests must target the resident's own id. Empty means
			// "for myself".
			return resourceID == "" || resourceID == profile.ID
		case ActionView:
			if resourceID == "" {
				// Listing is allowed; services scope the query to the
				// resident's own rows.
				return true
			}
			return e.ownsMaintenanceRequest(ctx, profile.ID, resourceID)
		default:
			return false
		}

	default:
		return false
	}
}

// ownsTask reports whether the staff member created or is assigned the task.
// Lookup failures deny.
func (e *Engine) ownsTask(ctx context.Context, staffID, taskID string) bool {
	var owns bool
	err := e.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM tasks
			WHERE id = $1 AND (assigned_to = $2 OR created_by = $2)
		)
	`, taskID, staffID).Scan(&owns)

	if err != nil {
		log.Printf("AUTHZ DENY (fail-closed) - task ownership lookup for %s: %v", taskID, err)
		return false
	}
	return owns
}

// linkedToCommunity reports whether a staff_communities link exists.
func (e *Engine) linkedToCommunity(ctx context.Context, staffID, communityID string) bool {
	var linked bool
	err := e.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM staff_communities
			WHERE staff_id = $1 AND community_id = $2
		)
	`, staffID, communityID).Scan(&linked)

	if err != nil {
		log.Printf("AUTHZ DENY (fail-closed) - community link lookup for %s: %v", communityID, err)
		return false
	}
	return linked
}

// linkedToTaskCommunity reports whether the staff member is linked to the
// community the task belongs to.
func (e *Engine) linkedToTaskCommunity(ctx context.Context, staffID, taskID string) bool {
	var linked bool
	err := e.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM tasks t
			JOIN staff_communities sc ON sc.community_id = t.community_id
			WHERE t.id = $1 AND sc.staff_id = $2
		)
	`, taskID, staffID).Scan(&linked)

	if err != nil {
		log.Printf("AUTHZ DENY (fail-closed) - task community lookup for %s: %v", taskID, err)
		return false
	}
	return linked
}

// ownsMaintenanceRequest reports whether the resident owns the request.
func (e *Engine) ownsMaintenanceRequest(ctx context.Context, residentID, requestID string) bool {
	var owns bool
	err := e.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM maintenance_requests
			WHERE id = $1 AND resident_id = $2
		)
	`, requestID, residentID).Scan(&owns)

	if err != nil {
		log.Printf("AUTHZ DENY (fail-closed) - maintenance request lookup for %s: %v", requestID, err)
		return false
	}
	return owns
}
