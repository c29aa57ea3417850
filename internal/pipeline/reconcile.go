package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"thirdcoast.systems/thumbwatch/internal/db"
)

type SweepReport struct {
	Total    int `json:"total"`
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}

// Sweep finds items whose monitor chain died (no handle, or a handle whose
// task finished or vanished) and arms a new run at the item's current
// interval, clamped to the current backoff bounds. Items whose handle moved
// while the sweep ran belong to a live chain and are left alone. Per-item
// failures are counted and logged, never fatal.
func (s *Service) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	items, err := s.items.ListItems(ctx)
	if err != nil {
		return report, fmt.Errorf("list items: %w", err)
	}
	report.Total = len(items)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		stale, err := s.stale(ctx, item)
		if err != nil {
			report.Failed++
			slog.Error("failed to inspect check task", "item_id", item.ID, "error", err)
			continue
		}
		if !stale {
			continue
		}

		interval := s.backoff.clamp(item.CheckIntervalDays)
		taskID, runAt, err := s.armAndRecord(ctx, item.ID, item.PendingTaskID, interval)
		if errors.Is(err, db.ErrConflict) {
			slog.Info("check schedule changed during sweep", "item_id", item.ID)
			continue
		}
		if err != nil {
			report.Failed++
			slog.Error("failed to repair check schedule", "item_id", item.ID, "error", err)
			continue
		}
		report.Repaired++
		slog.Info("repaired check schedule", "item_id", item.ID, "task_id", taskID, "interval_days", interval, "next_check_at", runAt)
	}

	slog.Info("reconcile sweep complete", "repaired", report.Repaired, "total", report.Total, "failed", report.Failed)
	return report, nil
}

func (s *Service) stale(ctx context.Context, item *db.Item) (bool, error) {
	if item.PendingTaskID == nil {
		return true, nil
	}
	status, err := s.scheduler.Inspect(ctx, *item.PendingTaskID)
	if err != nil {
		return false, err
	}
	return !status.Live(), nil
}
