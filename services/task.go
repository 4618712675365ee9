package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/proplio/api/authz"
	"github.com/proplio/api/db"
)

// TaskService manages tasks and their append-only activity log.
type TaskService struct {
	PG       *sql.DB
	Notifier *Notifier
}

func NewTaskService(pg *sql.DB, notifier *Notifier) *TaskService {
	return &TaskService{PG: pg, Notifier: notifier}
}

// TaskInput carries create/update fields for a task.
type TaskInput struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CommunityID string     `json:"community_id" binding:"required"`
	AssignedTo  string     `json:"assigned_to"`
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	CommunityID string
	Status      string
	AssignedTo  string
}

func validPriority(p string) bool {
	return p == db.PriorityHigh || p == db.PriorityMedium || p == db.PriorityLow
}

func validTaskStatus(s string) bool {
	switch s {
	case db.TaskStatusPending, db.TaskStatusInProgress, db.TaskStatusCompleted, db.TaskStatusOverdue:
		return true
	}
	return false
}

// ListTasks returns tasks visible to the staff profile. Admin-level roles see
// everything; other staff see tasks in their linked communities plus tasks
// they created or are assigned to.
func (s *TaskService) ListTasks(ctx context.Context, profile *authz.Profile, filter TaskFilter) ([]db.Task, error) {
	if !profile.IsStaff() {
		return nil, authz.ErrForbidden
	}

	query := `
		SELECT t.id, t.title, COALESCE(t.description, ''), t.status, t.priority, t.due_date,
		       t.community_id, COALESCE(t.assigned_to, ''), COALESCE(t.created_by, ''),
		       t.created_at, t.updated_at, c.name, COALESCE(a.name, '')
		FROM tasks t
		JOIN communities c ON c.id = t.community_id
		LEFT JOIN staff a ON a.id = t.assigned_to
	`
	conditions := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !authz.IsAdminRole(profile.Role) {
		conditions = append(conditions, fmt.Sprintf(`(
			t.community_id IN (SELECT community_id FROM staff_communities WHERE staff_id = %[1]s)
			OR t.assigned_to = %[1]s OR t.created_by = %[1]s
		)`, arg(profile.ID)))
	}
	if filter.CommunityID != "" {
		conditions = append(conditions, "t.community_id = "+arg(filter.CommunityID))
	}
	if filter.Status != "" {
		conditions = append(conditions, "t.status = "+arg(filter.Status))
	}
	if filter.AssignedTo != "" {
		conditions = append(conditions, "t.assigned_to = "+arg(filter.AssignedTo))
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY t.created_at DESC"

	rows, err := s.PG.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]db.Task, 0)
	for rows.Next() {
		var t db.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate,
			&t.CommunityID, &t.AssignedTo, &t.CreatedBy,
			&t.CreatedAt, &t.UpdatedAt, &t.CommunityName, &t.AssignedToName); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTask returns one task by id.
func (s *TaskService) GetTask(ctx context.Context, id string) (*db.Task, error) {
	var t db.Task
	err := s.PG.QueryRowContext(ctx, `
		SELECT t.id, t.title, COALESCE(t.description, ''), t.status, t.priority, t.due_date,
		       t.community_id, COALESCE(t.assigned_to, ''), COALESCE(t.created_by, ''),
		       t.created_at, t.updated_at, c.name, COALESCE(a.name, '')
		FROM tasks t
		JOIN communities c ON c.id = t.community_id
		LEFT JOIN staff a ON a.id = t.assigned_to
		WHERE t.id = $1
	`, id).Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate,
		&t.CommunityID, &t.AssignedTo, &t.CreatedBy,
		&t.CreatedAt, &t.UpdatedAt, &t.CommunityName, &t.AssignedToName)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, authz.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &t, nil
}

// CreateTask creates a task with its initial activity entry in one
// transaction. Either both rows land or neither does.
func (s *TaskService) CreateTask(ctx context.Context, profile *authz.Profile, input TaskInput) (*db.Task, error) {
	if !profile.IsStaff() {
		return nil, authz.ErrForbidden
	}
	if input.Priority == "" {
		input.Priority = db.PriorityMedium
	}
	if !validPriority(input.Priority) {
		return nil, fmt.Errorf("%w: priority %q", authz.ErrInvalidInput, input.Priority)
	}

	t := db.Task{
		ID:          uuid.New().String(),
		Title:       input.Title,
		Description: input.Description,
		Status:      db.TaskStatusPending,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		CommunityID: input.CommunityID,
		AssignedTo:  input.AssignedTo,
		CreatedBy:   profile.ID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	tx, err := s.PG.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin task transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, status, priority, due_date, community_id, assigned_to, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11)
	`, t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate, t.CommunityID, t.AssignedTo, t.CreatedBy, t.CreatedAt, t.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := appendTaskUpdateTx(ctx, tx, t.ID, profile.ID, "Task created", db.TaskUpdateCreated); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit task creation: %w", err)
	}

	if t.AssignedTo != "" {
		s.Notifier.TaskAssigned(ctx, &t)
	}
	return &t, nil
}

// UpdateTask edits a task's fields. A change of assignee is logged and the
// new assignee notified.
func (s *TaskService) UpdateTask(ctx context.Context, profile *authz.Profile, id string, input TaskInput) (*db.Task, error) {
	if !validPriority(input.Priority) {
		return nil, fmt.Errorf("%w: priority %q", authz.ErrInvalidInput, input.Priority)
	}

	current, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	_, err = s.PG.ExecContext(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, priority = $4, due_date = $5, assigned_to = NULLIF($6, ''), updated_at = $7
		WHERE id = $1
	`, id, input.Title, input.Description, input.Priority, input.DueDate, input.AssignedTo, time.Now())

	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if input.AssignedTo != "" && input.AssignedTo != current.AssignedTo {
		s.appendTaskUpdate(ctx, id, profile.ID, "Task reassigned", db.TaskUpdateComment)
		reassigned := *current
		reassigned.AssignedTo = input.AssignedTo
		reassigned.Title = input.Title
		s.Notifier.TaskAssigned(ctx, &reassigned)
	}

	return s.GetTask(ctx, id)
}

// UpdateTaskStatus transitions a task's status, logs the transition and
// notifies the creator.
func (s *TaskService) UpdateTaskStatus(ctx context.Context, profile *authz.Profile, id, status string) (*db.Task, error) {
	if !validTaskStatus(status) {
		return nil, fmt.Errorf("%w: status %q", authz.ErrInvalidInput, status)
	}

	current, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}

	tx, err := s.PG.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin status transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks SET status = $2, updated_at = $3 WHERE id = $1
	`, id, status, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	content := fmt.Sprintf("Status changed from %s to %s", current.Status, status)
	if err := appendTaskUpdateTx(ctx, tx, id, profile.ID, content, db.TaskUpdateStatus); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}

	updated := *current
	updated.Status = status
	s.Notifier.TaskStatusChanged(ctx, &updated, current.Status)

	return s.GetTask(ctx, id)
}

// DeleteTask removes a task and its activity log.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	result, err := s.PG.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return authz.ErrNotFound
	}
	return nil
}

// AddComment appends a comment to a task's activity log.
func (s *TaskService) AddComment(ctx context.Context, profile *authz.Profile, taskID, content string) (*db.TaskUpdate, error) {
	if content == "" {
		return nil, authz.ErrInvalidInput
	}
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}

	update := db.TaskUpdate{
		ID:         uuid.New().String(),
		TaskID:     taskID,
		UserID:     profile.ID,
		Content:    content,
		UpdateType: db.TaskUpdateComment,
		CreatedAt:  time.Now(),
	}

	_, err := s.PG.ExecContext(ctx, `
		INSERT INTO task_updates (id, task_id, user_id, content, update_type, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
	`, update.ID, update.TaskID, update.UserID, update.Content, update.UpdateType, update.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to add task comment: %w", err)
	}
	return &update, nil
}

// ListUpdates returns a task's activity log in chronological order. There is
// no edit or delete path: the log is append-only.
func (s *TaskService) ListUpdates(ctx context.Context, taskID string) ([]db.TaskUpdate, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT u.id, u.task_id, COALESCE(u.user_id, ''), u.content, u.update_type, u.created_at,
		       COALESCE(s.name, '')
		FROM task_updates u
		LEFT JOIN staff s ON s.id = u.user_id
		WHERE u.task_id = $1
		ORDER BY u.created_at ASC
	`, taskID)

	if err != nil {
		return nil, fmt.Errorf("failed to list task updates: %w", err)
	}
	defer rows.Close()

	updates := make([]db.TaskUpdate, 0)
	for rows.Next() {
		var u db.TaskUpdate
		if err := rows.Scan(&u.ID, &u.TaskID, &u.UserID, &u.Content, &u.UpdateType, &u.CreatedAt, &u.UserName); err != nil {
			return nil, fmt.Errorf("failed to scan task update: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// AddAttachment stores a file reference on a task and logs it.
func (s *TaskService) AddAttachment(ctx context.Context, profile *authz.Profile, taskID, fileName, fileURL string) (*db.TaskAttachment, error) {
	if fileName == "" || fileURL == "" {
		return nil, authz.ErrInvalidInput
	}
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}

	attachment := db.TaskAttachment{
		ID:         uuid.New().String(),
		TaskID:     taskID,
		UploadedBy: profile.ID,
		FileName:   fileName,
		FileURL:    fileURL,
		CreatedAt:  time.Now(),
	}

	tx, err := s.PG.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin attachment transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO task_attachments (id, task_id, uploaded_by, file_name, file_url, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
	`, attachment.ID, attachment.TaskID, attachment.UploadedBy, attachment.FileName, attachment.FileURL, attachment.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to add attachment: %w", err)
	}

	if err := appendTaskUpdateTx(ctx, tx, taskID, profile.ID, "Attached "+fileName, db.TaskUpdateAttachment); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit attachment: %w", err)
	}
	return &attachment, nil
}

// ListAttachments returns a task's attachments, newest first.
func (s *TaskService) ListAttachments(ctx context.Context, taskID string) ([]db.TaskAttachment, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT id, task_id, COALESCE(uploaded_by, ''), file_name, file_url, created_at
		FROM task_attachments
		WHERE task_id = $1
		ORDER BY created_at DESC
	`, taskID)

	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	attachments := make([]db.TaskAttachment, 0)
	for rows.Next() {
		var a db.TaskAttachment
		if err := rows.Scan(&a.ID, &a.TaskID, &a.UploadedBy, &a.FileName, &a.FileURL, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

// MarkOverdueTasks flags pending or in-progress tasks past their due date.
// Called by the worker on each tick.
func (s *TaskService) MarkOverdueTasks(ctx context.Context) (int64, error) {
	result, err := s.PG.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, updated_at = NOW()
		WHERE status IN ($2, $3) AND due_date IS NOT NULL AND due_date < NOW()
	`, db.TaskStatusOverdue, db.TaskStatusPending, db.TaskStatusInProgress)

	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue tasks: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}

func (s *TaskService) appendTaskUpdate(ctx context.Context, taskID, userID, content, updateType string) {
	_, err := s.PG.ExecContext(ctx, `
		INSERT INTO task_updates (id, task_id, user_id, content, update_type, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
	`, uuid.New().String(), taskID, userID, content, updateType, time.Now())
	if err != nil {
		// Activity log write failures don't fail the mutation that caused them.
		log.Printf("Failed to append task update for %s: %v", taskID, err)
	}
}

func appendTaskUpdateTx(ctx context.Context, tx *sql.Tx, taskID, userID, content, updateType string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO task_updates (id, task_id, user_id, content, update_type, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
	`, uuid.New().String(), taskID, userID, content, updateType, time.Now())
	if err != nil {
		return fmt.Errorf("failed to append task update: %w", err)
	}
	return nil
}
