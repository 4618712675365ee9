// Package authz centralizes every access-control decision for the API.
// The original system scattered these rules across SQL row-level-security
// policies, middleware and component checks; here there is a single engine
// consulted by handlers and the route gate alike.
//
// Separated concerns:
// - Role/permission model: static capability table, pure functions
// - ProfileLoader: maps an auth account to a Staff/Resident profile
// - Engine: per-resource allow/deny, fail-closed on lookup errors
// - Gate: coarse per-route decisions before handler logic runs
// - ApprovalService: the "become staff" workflow and the first-admin bootstrap
package authz

// Role is a staff member's role. Residents are not staff and carry no Role.
type Role string

const (
	RoleAdmin       Role = "Admin"
	RoleSuperAdmin  Role = "Super Admin" // treated as equivalent to Admin
	RoleManager     Role = "Community Manager"
	RoleMaintenance Role = "Maintenance Staff"
	RoleAssistant   Role = "Administrative Assistant"
)

// Action represents an operation on a resource category.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
)

// Category is a class of resource the capability table ranges over.
type Category string

const (
	CategoryUsers       Category = "users"
	CategoryCommunities Category = "communities"
	CategoryTasks       Category = "tasks"
	CategoryMaintenance Category = "maintenance_requests"
	CategoryReports     Category = "reports"
	CategorySettings    Category = "settings"
)

// RolePermissions is the static capability table: role -> category -> allowed
// actions. It is configuration data, immutable and safe to share across
// requests. Reports have no delete; settings have no create/delete.
var RolePermissions = map[Role]map[Category]map[Action]bool{
	// Maintenance requests carry no create for any staff role: filing one is
	// resident-only, since the request derives its community and unit from
	// the resident profile.
	RoleAdmin: {
		CategoryUsers:       {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true},
		CategoryCommunities: {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true},
		CategoryTasks:       {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true},
		CategoryMaintenance: {ActionView: true, ActionEdit: true, ActionDelete: true},
		CategoryReports:     {ActionView: true, ActionCreate: true, ActionExport: true},
		CategorySettings:    {ActionView: true, ActionEdit: true},
	},
	RoleSuperAdmin: {
		CategoryUsers:       {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true},
		CategoryCommunities: {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true},
		CategoryTasks:       {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true},
		CategoryMaintenance: {ActionView: true, ActionEdit: true, ActionDelete: true},
		CategoryReports:     {ActionView: true, ActionCreate: true, ActionExport: true},
		CategorySettings:    {ActionView: true, ActionEdit: true},
	},
	RoleManager: {
		CategoryUsers:       {ActionView: true},
		CategoryCommunities: {ActionView: true, ActionEdit: true},
		CategoryTasks:       {ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true},
		CategoryMaintenance: {ActionView: true, ActionEdit: true},
		CategoryReports:     {ActionView: true, ActionCreate: true, ActionExport: true},
		CategorySettings:    {ActionView: true},
	},
	RoleMaintenance: {
		CategoryCommunities: {ActionView: true},
		CategoryTasks:       {ActionView: true, ActionEdit: true},
		CategoryMaintenance: {ActionView: true, ActionEdit: true},
	},
	RoleAssistant: {
		CategoryUsers:       {ActionView: true},
		CategoryCommunities: {ActionView: true},
		CategoryTasks:       {ActionView: true, ActionCreate: true},
		CategoryMaintenance: {ActionView: true},
		CategoryReports:     {ActionView: true, ActionExport: true},
		CategorySettings:    {ActionView: true},
	},
}

// staffOnlyCategories are denied to residents outright, with or without a
// specific resource instance in play.
var staffOnlyCategories = map[Category]bool{
	CategoryUsers:    true,
	CategoryReports:  true,
	CategorySettings: true,
}

// HasPermission checks the capability table for a (role, category, action)
// triple. Unknown roles and categories answer false, never an error.
func HasPermission(role Role, category Category, action Action) bool {
	if catPerms, ok := RolePermissions[role]; ok {
		if actions, ok := catPerms[category]; ok {
			return actions[action]
		}
	}
	return false
}

// CapabilitiesOf returns a copy of the role's capability map for UI guards.
// Unknown roles get an empty map: deny-by-default, not an error that a caller
// could mishandle as allow.
func CapabilitiesOf(role Role) map[Category]map[Action]bool {
	caps := make(map[Category]map[Action]bool)
	catPerms, ok := RolePermissions[role]
	if !ok {
		return caps
	}
	for category, actions := range catPerms {
		copied := make(map[Action]bool, len(actions))
		for action, allowed := range actions {
			copied[action] = allowed
		}
		caps[category] = copied
	}
	return caps
}

// IsAdminRole reports whether the role bypasses per-community link checks.
func IsAdminRole(role Role) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}

// ValidRole reports whether a role name exists in the capability table.
// Used to validate requested roles on approval requests.
func ValidRole(role Role) bool {
	_, ok := RolePermissions[role]
	return ok
}

// StaffOnlyCategory reports whether a category is off-limits to residents.
func StaffOnlyCategory(category Category) bool {
	return staffOnlyCategories[category]
}
