package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type InsertMonitorTaskParams struct {
	ID      uuid.UUID
	Task    string
	Payload []byte
	RunAt   time.Time
}

const insertMonitorTask = `-- name: InsertMonitorTask :exec
INSERT INTO monitor_tasks (id, task, payload, run_at) VALUES ($1, $2, $3, $4)`

func (q *Queries) InsertMonitorTask(ctx context.Context, arg *InsertMonitorTaskParams) error {
	_, err := q.db.Exec(ctx, insertMonitorTask, arg.ID, arg.Task, arg.Payload, arg.RunAt)
	return translateErr(err)
}

const getMonitorTaskStatus = `-- name: GetMonitorTaskStatus :one
SELECT status FROM monitor_tasks WHERE id = $1`

func (q *Queries) GetMonitorTaskStatus(ctx context.Context, id uuid.UUID) (TaskStatus, error) {
	var status string
	if err := q.db.QueryRow(ctx, getMonitorTaskStatus, id).Scan(&status); err != nil {
		return "", translateErr(err)
	}
	return TaskStatus(status), nil
}

const cancelMonitorTask = `-- name: CancelMonitorTask :execrows
UPDATE monitor_tasks SET status = 'canceled', finished_at = now(), updated_at = now()
WHERE id = $1 AND status = 'scheduled'`

// CancelMonitorTask reports whether a scheduled task was canceled. Running,
// terminal and unknown tasks are left alone.
func (q *Queries) CancelMonitorTask(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := q.db.Exec(ctx, cancelMonitorTask, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const dequeueMonitorTask = `-- name: DequeueMonitorTask :one
UPDATE monitor_tasks SET status = 'running', attempts = attempts + 1, started_at = now(), updated_at = now()
WHERE id = (
	SELECT id FROM monitor_tasks
	WHERE status = 'scheduled' AND run_at <= now()
	ORDER BY run_at
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, task, payload, run_at, status, attempts, last_error`

// DequeueMonitorTask claims the oldest due task. Returns ErrNotFound when
// nothing is due.
func (q *Queries) DequeueMonitorTask(ctx context.Context) (*MonitorTask, error) {
	var t MonitorTask
	var status string
	err := q.db.QueryRow(ctx, dequeueMonitorTask).Scan(
		&t.ID,
		&t.Task,
		&t.Payload,
		&t.RunAt,
		&status,
		&t.Attempts,
		&t.LastError,
	)
	if err != nil {
		return nil, translateErr(err)
	}
	t.Status = TaskStatus(status)
	return &t, nil
}

const markMonitorTaskSucceeded = `-- name: MarkMonitorTaskSucceeded :exec
UPDATE monitor_tasks SET status = 'succeeded', finished_at = now(), updated_at = now()
WHERE id = $1 AND status = 'running'`

func (q *Queries) MarkMonitorTaskSucceeded(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, markMonitorTaskSucceeded, id)
	return err
}

type MarkMonitorTaskFailedParams struct {
	ID        uuid.UUID
	LastError string
}

const markMonitorTaskFailed = `-- name: MarkMonitorTaskFailed :exec
UPDATE monitor_tasks SET status = 'failed', last_error = $2, finished_at = now(), updated_at = now()
WHERE id = $1 AND status = 'running'`

func (q *Queries) MarkMonitorTaskFailed(ctx context.Context, arg *MarkMonitorTaskFailedParams) error {
	_, err := q.db.Exec(ctx, markMonitorTaskFailed, arg.ID, arg.LastError)
	return err
}

const recoverStuckMonitorTasks = `-- name: RecoverStuckMonitorTasks :execrows
UPDATE monitor_tasks SET status = 'scheduled', started_at = NULL, updated_at = now()
WHERE status = 'running' AND started_at < $1`

// RecoverStuckMonitorTasks returns tasks claimed before cutoff to the queue.
func (q *Queries) RecoverStuckMonitorTasks(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, recoverStuckMonitorTasks, cutoff)
	if err != nil {
		return 0, fmt.Errorf("recover stuck monitor tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

const pruneMonitorTasks = `-- name: PruneMonitorTasks :execrows
DELETE FROM monitor_tasks WHERE status IN ('succeeded', 'failed', 'canceled') AND finished_at < $1`

func (q *Queries) PruneMonitorTasks(ctx context.Context, before time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, pruneMonitorTasks, before)
	if err != nil {
		return 0, fmt.Errorf("prune monitor tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

const listenMonitorTasks = `LISTEN monitor_tasks`

func (q *Queries) ListenMonitorTasks(ctx context.Context) error {
	_, err := q.db.Exec(ctx, listenMonitorTasks)
	return err
}
