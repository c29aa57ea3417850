package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/thumbwatch/internal/db"
)

// Handler processes one claimed task. taskID is the handle ScheduleAt
// returned. Returning an error marks the task failed.
type Handler func(ctx context.Context, taskID uuid.UUID, payload json.RawMessage) error

type Runner struct {
	queue        *Queue
	handlers     map[string]Handler
	workers      int
	pollInterval time.Duration
	errorBackoff time.Duration
}

func NewRunner(queue *Queue, workers int, pollInterval time.Duration) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Runner{
		queue:        queue,
		handlers:     make(map[string]Handler),
		workers:      workers,
		pollInterval: pollInterval,
		errorBackoff: 2 * time.Second,
	}
}

// Handle registers h for task. Must be called before Run.
func (r *Runner) Handle(task string, h Handler) {
	r.handlers[task] = h
}

// Run starts the workers and blocks until ctx is done. Each send on wake
// nudges one idle worker to drain the queue ahead of its poll interval.
func (r *Runner) Run(ctx context.Context, wake <-chan struct{}) {
	var wg sync.WaitGroup
	slog.Info("Monitor workers started", "workers", r.workers)
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx, wake)
		}()
	}
	wg.Wait()
}

func (r *Runner) worker(ctx context.Context, wake <-chan struct{}) {
	for {
		if ctx.Err() != nil {
			return
		}

		r.Drain(ctx)

		select {
		case <-ctx.Done():
			return
		case <-wake:
		case <-time.After(r.pollInterval):
		}
	}
}

// Drain processes due tasks until none remain and returns how many ran.
func (r *Runner) Drain(ctx context.Context) int {
	ran := 0
	for ctx.Err() == nil {
		task, err := r.queue.store.DequeueMonitorTask(ctx)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return ran
			}
			slog.Error("failed to dequeue monitor task", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(r.errorBackoff):
			}
			return ran
		}
		ran++
		r.process(ctx, task)
	}
	return ran
}

func (r *Runner) process(ctx context.Context, task *db.MonitorTask) {
	err := r.invoke(ctx, task)
	if err != nil {
		slog.Error("monitor task failed", "task_id", task.ID, "task", task.Task, "attempts", task.Attempts, "error", err)
		if markErr := r.queue.store.MarkMonitorTaskFailed(ctx, &db.MarkMonitorTaskFailedParams{
			ID:        task.ID,
			LastError: err.Error(),
		}); markErr != nil {
			slog.Error("failed to mark monitor task failed", "task_id", task.ID, "error", markErr)
		}
		return
	}
	if err := r.queue.store.MarkMonitorTaskSucceeded(ctx, task.ID); err != nil {
		slog.Error("failed to mark monitor task succeeded", "task_id", task.ID, "error", err)
	}
}

func (r *Runner) invoke(ctx context.Context, task *db.MonitorTask) (err error) {
	h, ok := r.handlers[task.Task]
	if !ok {
		return fmt.Errorf("no handler registered for task %q", task.Task)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h(ctx, task.ID, json.RawMessage(task.Payload))
}
