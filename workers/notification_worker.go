package workers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/proplio/api/db"
	"github.com/proplio/api/services"
)

// NotificationWorker drains the notifications table and delivers queued
// entries as push notifications. Deliveries are fire-and-forget from the
// API's point of view: a row is marked sent or failed here, and failures
// never propagate back to the request that enqueued them.
type NotificationWorker struct {
	PG           *sql.DB
	Push         *services.PushService
	PollInterval time.Duration
	BatchSize    int
}

func NewNotificationWorker(pg *sql.DB, push *services.PushService, pollInterval time.Duration, batchSize int) *NotificationWorker {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &NotificationWorker{
		PG:           pg,
		Push:         push,
		PollInterval: pollInterval,
		BatchSize:    batchSize,
	}
}

// Run polls until the context is cancelled.
func (w *NotificationWorker) Run(ctx context.Context) {
	log.Printf("Notification worker started (interval %s, batch %d)", w.PollInterval, w.BatchSize)

	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Notification worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

// processBatch claims a batch of queued notifications and delivers each one.
// FOR UPDATE SKIP LOCKED lets multiple worker instances share the queue
// without double-delivering.
func (w *NotificationWorker) processBatch(ctx context.Context) {
	tx, err := w.PG.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("Notification worker: failed to begin batch: %v", err)
		return
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, recipient_id, recipient_kind, template_kind, payload
		FROM notifications
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, db.NotificationQueued, w.BatchSize)
	if err != nil {
		log.Printf("Notification worker: failed to claim batch: %v", err)
		return
	}

	notifications := make([]db.Notification, 0)
	for rows.Next() {
		var n db.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.RecipientKind, &n.TemplateKind, &n.Payload); err != nil {
			rows.Close()
			log.Printf("Notification worker: failed to scan notification: %v", err)
			return
		}
		notifications = append(notifications, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		log.Printf("Notification worker: batch read error: %v", err)
		return
	}

	delivered := 0
	for _, n := range notifications {
		status := db.NotificationSent
		lastError := ""

		if err := w.deliver(ctx, &n); err != nil {
			status = db.NotificationFailed
			lastError = err.Error()
			log.Printf("Notification %s delivery failed: %v", n.ID, err)
		} else {
			delivered++
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE notifications SET status = $2, sent_at = NOW(), last_error = NULLIF($3, '') WHERE id = $1
		`, n.ID, status, lastError); err != nil {
			log.Printf("Notification worker: failed to mark %s %s: %v", n.ID, status, err)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("Notification worker: failed to commit batch: %v", err)
		return
	}

	if len(notifications) > 0 {
		log.Printf("Notification worker: processed %d notifications (%d delivered)", len(notifications), delivered)
	}
}

// deliver sends one notification unless the recipient turned the toggle off.
func (w *NotificationWorker) deliver(ctx context.Context, n *db.Notification) error {
	enabled, err := w.recipientWants(ctx, n)
	if err != nil {
		return err
	}
	if !enabled {
		// Opted out is a successful non-delivery.
		return nil
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v", err)
	}

	title, body := renderTemplate(n.TemplateKind, payload)
	return w.Push.SendToRecipient(ctx, n.RecipientKind, n.RecipientID, title, body, payload)
}

// recipientWants checks the recipient's notification preference for the
// template kind. A missing recipient fails the delivery.
func (w *NotificationWorker) recipientWants(ctx context.Context, n *db.Notification) (bool, error) {
	column := ""
	switch n.TemplateKind {
	case services.TemplateTaskAssigned:
		column = "pref_task_assigned"
	case services.TemplateTaskStatus:
		column = "pref_task_status"
	case services.TemplateMaintenanceUpdate:
		column = "pref_maintenance_update"
	default:
		return false, fmt.Errorf("unknown template kind %q", n.TemplateKind)
	}

	table := "staff"
	if n.RecipientKind == services.RecipientResident {
		table = "residents"
	}

	var enabled bool
	err := w.PG.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", column, table),
		n.RecipientID,
	).Scan(&enabled)

	if err != nil {
		if err == sql.ErrNoRows {
			return false, fmt.Errorf("recipient %s %s not found", n.RecipientKind, n.RecipientID)
		}
		return false, fmt.Errorf("failed to read preferences: %v", err)
	}
	return enabled, nil
}

func renderTemplate(kind string, payload map[string]string) (title, body string) {
	switch kind {
	case services.TemplateTaskAssigned:
		return "New task assigned",
			fmt.Sprintf("%s (%s priority)", payload["task_title"], payload["priority"])
	case services.TemplateTaskStatus:
		return "Task status changed",
			fmt.Sprintf("%s: %s -> %s", payload["task_title"], payload["old_status"], payload["new_status"])
	case services.TemplateMaintenanceUpdate:
		return "Maintenance request update",
			fmt.Sprintf("%s is now %s", payload["request_title"], payload["status"])
	default:
		return "Notification", ""
	}
}
