package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const itemColumns = `id, source_url, source_id, title, artifact_key, original_asset_url, derived_asset_url,
	last_fingerprint, check_interval_days, last_checked_at, next_check_at, pending_task_id,
	last_check_outcome, change_count, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var i Item
	err := row.Scan(
		&i.ID,
		&i.SourceURL,
		&i.SourceID,
		&i.Title,
		&i.ArtifactKey,
		&i.OriginalAssetURL,
		&i.DerivedAssetURL,
		&i.LastFingerprint,
		&i.CheckIntervalDays,
		&i.LastCheckedAt,
		&i.NextCheckAt,
		&i.PendingTaskID,
		&i.LastCheckOutcome,
		&i.ChangeCount,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return nil, translateErr(err)
	}
	return &i, nil
}

func collectItems(rows pgx.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type InsertItemParams struct {
	ID                uuid.UUID
	SourceURL         string
	SourceID          string
	Title             string
	ArtifactKey       *string
	OriginalAssetURL  string
	DerivedAssetURL   string
	LastFingerprint   *string
	CheckIntervalDays int
	LastCheckedAt     time.Time
}

const insertItem = `-- name: InsertItem :one
INSERT INTO items (id, source_url, source_id, title, artifact_key, original_asset_url, derived_asset_url,
	last_fingerprint, check_interval_days, last_checked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + itemColumns

// InsertItem returns ErrDuplicate when source_id is already taken.
func (q *Queries) InsertItem(ctx context.Context, arg *InsertItemParams) (*Item, error) {
	row := q.db.QueryRow(ctx, insertItem,
		arg.ID,
		arg.SourceURL,
		arg.SourceID,
		arg.Title,
		arg.ArtifactKey,
		arg.OriginalAssetURL,
		arg.DerivedAssetURL,
		arg.LastFingerprint,
		arg.CheckIntervalDays,
		arg.LastCheckedAt,
	)
	return scanItem(row)
}

const getItem = `-- name: GetItem :one
SELECT ` + itemColumns + ` FROM items WHERE id = $1`

func (q *Queries) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	return scanItem(q.db.QueryRow(ctx, getItem, id))
}

const getItemBySourceID = `-- name: GetItemBySourceID :one
SELECT ` + itemColumns + ` FROM items WHERE source_id = $1`

func (q *Queries) GetItemBySourceID(ctx context.Context, sourceID string) (*Item, error) {
	return scanItem(q.db.QueryRow(ctx, getItemBySourceID, sourceID))
}

const listItems = `-- name: ListItems :many
SELECT ` + itemColumns + ` FROM items ORDER BY created_at, id`

func (q *Queries) ListItems(ctx context.Context) ([]*Item, error) {
	rows, err := q.db.Query(ctx, listItems)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

const listItemsPage = `-- name: ListItemsPage :many
SELECT ` + itemColumns + ` FROM items ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`

// ListItemsPage returns items newest first.
func (q *Queries) ListItemsPage(ctx context.Context, limit, offset int) ([]*Item, error) {
	rows, err := q.db.Query(ctx, listItemsPage, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

const countItems = `-- name: CountItems :one
SELECT count(*) FROM items`

func (q *Queries) CountItems(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRow(ctx, countItems).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type RecordItemCheckParams struct {
	ID uuid.UUID
	// LastFingerprint is left untouched when nil.
	LastFingerprint   *string
	CheckIntervalDays int
	LastCheckedAt     time.Time
	NextCheckAt       *time.Time
	PendingTaskID     *uuid.UUID
	Outcome           string
	Changed           bool
	// ExpectedTaskID is the pending task the caller read; the write is
	// refused with ErrConflict when another run has replaced it since.
	ExpectedTaskID *uuid.UUID
}

const recordItemCheck = `-- name: RecordItemCheck :exec
UPDATE items SET
	last_fingerprint    = COALESCE($2, last_fingerprint),
	check_interval_days = $3,
	last_checked_at     = $4,
	next_check_at       = $5,
	pending_task_id     = $6,
	last_check_outcome  = $7,
	change_count        = change_count + CASE WHEN $8::boolean THEN 1 ELSE 0 END,
	updated_at          = now()
WHERE id = $1 AND pending_task_id IS NOT DISTINCT FROM $9`

func (q *Queries) RecordItemCheck(ctx context.Context, arg *RecordItemCheckParams) error {
	tag, err := q.db.Exec(ctx, recordItemCheck,
		arg.ID,
		arg.LastFingerprint,
		arg.CheckIntervalDays,
		arg.LastCheckedAt,
		arg.NextCheckAt,
		arg.PendingTaskID,
		arg.Outcome,
		arg.Changed,
		arg.ExpectedTaskID,
	)
	if err != nil {
		return fmt.Errorf("record item check: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return q.missOrConflict(ctx, arg.ID)
	}
	return nil
}

type SetItemScheduleParams struct {
	ID                uuid.UUID
	PendingTaskID     *uuid.UUID
	NextCheckAt       *time.Time
	CheckIntervalDays int
	// ExpectedTaskID works as in RecordItemCheckParams.
	ExpectedTaskID *uuid.UUID
}

const setItemSchedule = `-- name: SetItemSchedule :exec
UPDATE items SET pending_task_id = $2, next_check_at = $3, check_interval_days = $4, updated_at = now()
WHERE id = $1 AND pending_task_id IS NOT DISTINCT FROM $5`

func (q *Queries) SetItemSchedule(ctx context.Context, arg *SetItemScheduleParams) error {
	tag, err := q.db.Exec(ctx, setItemSchedule,
		arg.ID,
		arg.PendingTaskID,
		arg.NextCheckAt,
		arg.CheckIntervalDays,
		arg.ExpectedTaskID,
	)
	if err != nil {
		return fmt.Errorf("set item schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return q.missOrConflict(ctx, arg.ID)
	}
	return nil
}

const itemExists = `-- name: ItemExists :one
SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)`

// missOrConflict explains a conditional update that touched no rows.
func (q *Queries) missOrConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := q.db.QueryRow(ctx, itemExists, id).Scan(&exists); err != nil {
		return fmt.Errorf("check item %s: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}
