package db

import "time"

// ===========================
// COMMUNITY MODELS
// ===========================

// Community is the aggregation root for staff links, residents, tasks and
// maintenance requests.
type Community struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Zip       string    `json:"zip"`
	Units     int       `json:"units"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Populated via JOINs for API responses
	StaffCount    int `json:"staff_count,omitempty"`
	ResidentCount int `json:"resident_count,omitempty"`
}

// StaffCommunityLink assigns a staff member to a community.
// The (staff_id, community_id) pair is unique.
type StaffCommunityLink struct {
	StaffID     string    `json:"staff_id"`
	CommunityID string    `json:"community_id"`
	LinkRole    string    `json:"link_role"` // manager, assistant
	CreatedAt   time.Time `json:"created_at"`

	// For API responses
	CommunityName string `json:"community_name,omitempty"`
	StaffName     string `json:"staff_name,omitempty"`
}

// ===========================
// PROFILE MODELS
// ===========================

// NotificationPreferences is the fixed set of per-user notification toggles.
type NotificationPreferences struct {
	TaskAssigned      bool `json:"task_assigned"`
	TaskStatusChanged bool `json:"task_status_changed"`
	MaintenanceUpdate bool `json:"maintenance_update"`
	Announcements     bool `json:"announcements"`
}

// StaffProfile represents an internal employee. At most one per auth account;
// email is unique across staff.
type StaffProfile struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id,omitempty"` // auth provider user id, may be empty for pre-provisioned staff
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"` // authz.Role value
	Phone     string    `json:"phone,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	FCMToken  string    `json:"fcm_token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Preferences NotificationPreferences `json:"preferences"`

	// Populated via JOINs
	Communities []Community `json:"communities,omitempty"`
}

// ResidentProfile represents a unit occupant. A resident belongs to exactly
// one community.
type ResidentProfile struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id,omitempty"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	CommunityID string    `json:"community_id"`
	UnitNumber  string    `json:"unit_number"`
	FCMToken    string    `json:"fcm_token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Preferences NotificationPreferences `json:"preferences"`

	// Populated via JOINs
	CommunityName string `json:"community_name,omitempty"`
}

// ===========================
// TASK MODELS
// ===========================

// Task statuses
const (
	TaskStatusPending    = "Pending"
	TaskStatusInProgress = "In Progress"
	TaskStatusCompleted  = "Completed"
	TaskStatusOverdue    = "Overdue"
)

// Task priorities
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// Task is a unit of work scoped to a community, optionally assigned to staff.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CommunityID string     `json:"community_id"`
	AssignedTo  string     `json:"assigned_to,omitempty"` // staff id
	CreatedBy   string     `json:"created_by,omitempty"`  // staff id
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Populated via JOINs
	CommunityName  string `json:"community_name,omitempty"`
	AssignedToName string `json:"assigned_to_name,omitempty"`
}

// TaskUpdate types
const (
	TaskUpdateCreated    = "created"
	TaskUpdateComment    = "update"
	TaskUpdateStatus     = "status"
	TaskUpdateAttachment = "attachment"
)

// TaskUpdate is one entry in a task's append-only activity log. Rows are
// immutable once created; insertion order is chronological order.
type TaskUpdate struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	UserID     string    `json:"user_id,omitempty"` // empty means system-generated
	Content    string    `json:"content"`
	UpdateType string    `json:"update_type"`
	CreatedAt  time.Time `json:"created_at"`

	UserName string `json:"user_name,omitempty"`
}

// TaskAttachment is a file reference attached to a task.
type TaskAttachment struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	UploadedBy string    `json:"uploaded_by,omitempty"`
	FileName   string    `json:"file_name"`
	FileURL    string    `json:"file_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// ===========================
// MAINTENANCE MODELS
// ===========================

// Maintenance request statuses
const (
	MaintenanceOpen       = "Open"
	MaintenanceInProgress = "In Progress"
	MaintenanceCompleted  = "Completed"
)

// MaintenanceRequest is a resident-owned work request.
type MaintenanceRequest struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	CommunityID string     `json:"community_id"`
	ResidentID  string     `json:"resident_id"`
	AssignedTo  string     `json:"assigned_to,omitempty"` // staff id
	UnitNumber  string     `json:"unit_number"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ResidentName string `json:"resident_name,omitempty"`
}

// ===========================
// APPROVAL MODELS
// ===========================

// Approval request statuses
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// StaffApprovalRequest models the self-service "become staff" workflow.
// At most one pending request per account.
type StaffApprovalRequest struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	RequestedRole string    `json:"requested_role"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ===========================
// NOTIFICATION MODELS
// ===========================

// Notification statuses
const (
	NotificationQueued = "queued"
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

// Notification is one queued fire-and-forget delivery. The worker drains the
// queue; failures are logged and marked, never surfaced to the triggering
// request.
type Notification struct {
	ID            string     `json:"id"`
	RecipientID   string     `json:"recipient_id"`   // staff or resident id
	RecipientKind string     `json:"recipient_kind"` // staff, resident
	TemplateKind  string     `json:"template_kind"`  // task_assigned, task_status, maintenance_update
	Payload       string     `json:"payload"`        // JSON
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}
