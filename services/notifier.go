package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/proplio/api/db"
)

// Notifier enqueues notifications into the notifications table for the
// worker to deliver. Enqueue failures are logged, never returned: a push
// that doesn't go out must not fail the task update that triggered it.
type Notifier struct {
	PG *sql.DB
}

func NewNotifier(pg *sql.DB) *Notifier {
	return &Notifier{PG: pg}
}

// Template kinds
const (
	TemplateTaskAssigned      = "task_assigned"
	TemplateTaskStatus        = "task_status"
	TemplateMaintenanceUpdate = "maintenance_update"
)

// Recipient kinds
const (
	RecipientStaff    = "staff"
	RecipientResident = "resident"
)

func (n *Notifier) enqueue(ctx context.Context, recipientKind, recipientID, templateKind string, payload map[string]string) {
	if recipientID == "" {
		return
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal notification payload: %v", err)
		return
	}

	_, err = n.PG.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, recipient_kind, template_kind, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New().String(), recipientID, recipientKind, templateKind, string(payloadJSON), db.NotificationQueued, time.Now())

	if err != nil {
		log.Printf("Failed to enqueue %s notification for %s %s: %v", templateKind, recipientKind, recipientID, err)
	}
}

// TaskAssigned notifies a staff member that a task was assigned to them.
func (n *Notifier) TaskAssigned(ctx context.Context, task *db.Task) {
	n.enqueue(ctx, RecipientStaff, task.AssignedTo, TemplateTaskAssigned, map[string]string{
		"task_id":    task.ID,
		"task_title": task.Title,
		"priority":   task.Priority,
	})
}

// TaskStatusChanged notifies the task creator about a status transition.
func (n *Notifier) TaskStatusChanged(ctx context.Context, task *db.Task, oldStatus string) {
	n.enqueue(ctx, RecipientStaff, task.CreatedBy, TemplateTaskStatus, map[string]string{
		"task_id":    task.ID,
		"task_title": task.Title,
		"old_status": oldStatus,
		"new_status": task.Status,
	})
}

// MaintenanceUpdated notifies the resident who filed a maintenance request.
func (n *Notifier) MaintenanceUpdated(ctx context.Context, request *db.MaintenanceRequest) {
	n.enqueue(ctx, RecipientResident, request.ResidentID, TemplateMaintenanceUpdate, map[string]string{
		"request_id":    request.ID,
		"request_title": request.Title,
		"status":        request.Status,
	})
}
