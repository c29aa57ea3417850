// Package taskqueue is a small durable scheduler on top of the monitor_tasks
// table. Tasks are armed for a point in time, claimed by workers with
// SKIP LOCKED and marked terminal when their handler returns.
package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/thumbwatch/internal/db"
)

// Status is the observed state of a task handle.
type Status string

const (
	StatusScheduled Status = Status(db.TaskStatusScheduled)
	StatusRunning   Status = Status(db.TaskStatusRunning)
	StatusSucceeded Status = Status(db.TaskStatusSucceeded)
	StatusFailed    Status = Status(db.TaskStatusFailed)
	StatusCanceled  Status = Status(db.TaskStatusCanceled)
	// StatusMissing means the handle no longer refers to any task row.
	StatusMissing Status = "missing"
)

// Live reports whether the task will still run (or is running now).
func (s Status) Live() bool {
	return s == StatusScheduled || s == StatusRunning
}

// Store is the subset of *db.Queries the queue needs.
type Store interface {
	InsertMonitorTask(ctx context.Context, arg *db.InsertMonitorTaskParams) error
	GetMonitorTaskStatus(ctx context.Context, id uuid.UUID) (db.TaskStatus, error)
	CancelMonitorTask(ctx context.Context, id uuid.UUID) (bool, error)
	DequeueMonitorTask(ctx context.Context) (*db.MonitorTask, error)
	MarkMonitorTaskSucceeded(ctx context.Context, id uuid.UUID) error
	MarkMonitorTaskFailed(ctx context.Context, arg *db.MarkMonitorTaskFailedParams) error
	RecoverStuckMonitorTasks(ctx context.Context, cutoff time.Time) (int64, error)
	PruneMonitorTasks(ctx context.Context, before time.Time) (int64, error)
}

type Queue struct {
	store Store
}

func New(store Store) *Queue {
	return &Queue{store: store}
}

// ScheduleAt arms task to run at runAt with payload encoded as JSON and
// returns the new handle.
func (q *Queue) ScheduleAt(ctx context.Context, runAt time.Time, task string, payload any) (uuid.UUID, error) {
	if task == "" {
		return uuid.Nil, errors.New("taskqueue: empty task name")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("taskqueue: encode payload: %w", err)
	}
	id := uuid.New()
	if err := q.store.InsertMonitorTask(ctx, &db.InsertMonitorTaskParams{
		ID:      id,
		Task:    task,
		Payload: raw,
		RunAt:   runAt.UTC(),
	}); err != nil {
		return uuid.Nil, fmt.Errorf("taskqueue: schedule %s: %w", task, err)
	}
	return id, nil
}

// Cancel stops a scheduled task. Cancelling a running, finished or unknown
// task is a successful no-op.
func (q *Queue) Cancel(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	if _, err := q.store.CancelMonitorTask(ctx, id); err != nil {
		return fmt.Errorf("taskqueue: cancel %s: %w", id, err)
	}
	return nil
}

func (q *Queue) Inspect(ctx context.Context, id uuid.UUID) (Status, error) {
	status, err := q.store.GetMonitorTaskStatus(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return StatusMissing, nil
	}
	if err != nil {
		return "", fmt.Errorf("taskqueue: inspect %s: %w", id, err)
	}
	return Status(status), nil
}

// RecoverStuck re-queues tasks that have been running longer than stuckAfter,
// typically because the worker that claimed them died.
func (q *Queue) RecoverStuck(ctx context.Context, stuckAfter time.Duration) (int64, error) {
	return q.store.RecoverStuckMonitorTasks(ctx, time.Now().Add(-stuckAfter))
}

// Prune deletes finished tasks older than retention.
func (q *Queue) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return q.store.PruneMonitorTasks(ctx, time.Now().Add(-retention))
}
