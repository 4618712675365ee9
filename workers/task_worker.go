package workers

import (
	"context"
	"log"
	"time"

	"github.com/proplio/api/services"
)

// TaskWorker runs periodic task housekeeping: pending or in-progress tasks
// past their due date get flagged Overdue.
type TaskWorker struct {
	Tasks    *services.TaskService
	Interval time.Duration
}

func NewTaskWorker(tasks *services.TaskService, interval time.Duration) *TaskWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &TaskWorker{Tasks: tasks, Interval: interval}
}

// Run polls until the context is cancelled.
func (w *TaskWorker) Run(ctx context.Context) {
	log.Printf("Task worker started (interval %s)", w.Interval)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Task worker stopping")
			return
		case <-ticker.C:
			count, err := w.Tasks.MarkOverdueTasks(ctx)
			if err != nil {
				log.Printf("Task worker: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("Task worker: marked %d tasks overdue", count)
			}
		}
	}
}
