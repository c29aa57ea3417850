package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/thumbwatch/internal/db"
)

// CheckResult describes one monitor run.
type CheckResult struct {
	ItemID       uuid.UUID
	Outcome      Outcome
	IntervalDays int
	// NextCheckAt and TaskID are nil when rearming failed.
	NextCheckAt *time.Time
	TaskID      *uuid.UUID
	// Err is the cause of an error outcome.
	Err error
}

// Check runs the monitor state machine for one item: re-fetch the upstream
// thumbnail, compare fingerprints, refresh the artifact on change, then pick
// the next interval and arm the next run.
//
// Upstream problems become the error outcome and still rearm. Only
// record-store failures are returned.
func (s *Service) Check(ctx context.Context, itemID uuid.UUID) (*CheckResult, error) {
	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return s.check(ctx, item)
}

func (s *Service) loadItem(ctx context.Context, itemID uuid.UUID) (*db.Item, error) {
	item, err := s.items.GetItem(ctx, itemID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("load item %s: %w", itemID, err)
	}
	return item, nil
}

func (s *Service) check(ctx context.Context, item *db.Item) (*CheckResult, error) {
	outcome, fp, checkErr := s.inspect(ctx, item)
	if checkErr != nil {
		slog.Warn("thumbnail check failed", "item_id", item.ID, "source_id", item.SourceID, "error", checkErr)
	}

	res := &CheckResult{
		ItemID:       item.ID,
		Outcome:      outcome,
		IntervalDays: s.backoff.Next(item.CheckIntervalDays, outcome),
		Err:          checkErr,
	}

	if item.PendingTaskID != nil {
		if err := s.scheduler.Cancel(ctx, *item.PendingTaskID); err != nil {
			slog.Warn("failed to cancel previous check; it will be skipped when it fires", "item_id", item.ID, "task_id", *item.PendingTaskID, "error", err)
		}
	}

	taskID, runAt, err := s.arm(ctx, item.ID, res.IntervalDays)
	if err != nil {
		slog.Error("failed to rearm check", "item_id", item.ID, "error", err)
	} else {
		res.TaskID = &taskID
		res.NextCheckAt = &runAt
	}

	var lastFingerprint *string
	if outcome != OutcomeError {
		lastFingerprint = &fp
	}
	if err := s.items.RecordItemCheck(ctx, &db.RecordItemCheckParams{
		ID:                item.ID,
		LastFingerprint:   lastFingerprint,
		CheckIntervalDays: res.IntervalDays,
		LastCheckedAt:     s.now(),
		NextCheckAt:       res.NextCheckAt,
		PendingTaskID:     res.TaskID,
		Outcome:           string(outcome),
		Changed:           outcome == OutcomeChanged,
		ExpectedTaskID:    item.PendingTaskID,
	}); err != nil {
		if res.TaskID != nil {
			_ = s.scheduler.Cancel(ctx, *res.TaskID)
		}
		return nil, fmt.Errorf("record check for %s: %w", item.ID, err)
	}

	slog.Info("thumbnail checked",
		"item_id", item.ID,
		"outcome", outcome,
		"interval_days", res.IntervalDays,
		"rearmed", res.TaskID != nil,
	)
	return res, nil
}

// inspect returns the outcome and, unless the outcome is an error, the new
// fingerprint. A detected change is only reported once the artifact has been
// refreshed, so a failed refresh is retried on the next run.
func (s *Service) inspect(ctx context.Context, item *db.Item) (Outcome, string, error) {
	thumb, err := s.fetcher.FetchThumbnail(ctx, item.SourceID)
	if err != nil {
		return OutcomeError, "", fetchErr("thumbnail", item.SourceID, err)
	}
	fp := s.fingerprint(thumb.Data)

	if item.LastFingerprint != nil && *item.LastFingerprint == fp {
		return OutcomeUnchanged, fp, nil
	}

	if item.ArtifactKey != nil {
		decorated, err := s.decorator.Decorate(thumb.Data)
		if err != nil {
			return OutcomeError, "", wrap(ErrDecorationFailed, "redecorate", item.SourceID, err)
		}
		if err := s.assets.Store(ctx, *item.ArtifactKey, decorated); err != nil {
			return OutcomeError, "", wrap(ErrStorageFailed, "overwrite artifact", *item.ArtifactKey, err)
		}
	}
	return OutcomeChanged, fp, nil
}

// HandleCheckTask adapts Check to the task runner. Only the task recorded
// as the item's pending check may run it; superseded tasks whose cancel
// failed, re-delivered tasks and runs for deleted items end quietly.
func (s *Service) HandleCheckTask(ctx context.Context, taskID uuid.UUID, payload json.RawMessage) error {
	var p CheckPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", CheckTask, err)
	}
	if p.ItemID == uuid.Nil {
		return fmt.Errorf("%s payload without item_id", CheckTask)
	}

	item, err := s.loadItem(ctx, p.ItemID)
	if errors.Is(err, ErrItemNotFound) {
		slog.Info("skipping check for missing item", "item_id", p.ItemID, "task_id", taskID)
		return nil
	}
	if err != nil {
		return err
	}
	if item.PendingTaskID == nil || *item.PendingTaskID != taskID {
		slog.Info("skipping superseded check", "item_id", item.ID, "task_id", taskID, "pending_task_id", item.PendingTaskID)
		return nil
	}

	_, err = s.check(ctx, item)
	if errors.Is(err, db.ErrConflict) {
		slog.Info("check lost to a concurrent run", "item_id", item.ID, "task_id", taskID)
		return nil
	}
	return err
}
