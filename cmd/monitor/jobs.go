package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"thirdcoast.systems/thumbwatch/internal/pipeline"
)

const (
	recoverSchedule = "@every 5m"
	pruneSchedule   = "@hourly"
)

type sweeper interface {
	Sweep(ctx context.Context) (pipeline.SweepReport, error)
}

type maintainer interface {
	RecoverStuck(ctx context.Context, stuckAfter time.Duration) (int64, error)
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

type jobs struct {
	sweeper    sweeper
	queue      maintainer
	stuckAfter time.Duration
	retention  time.Duration
}

// register adds the reconciler and queue housekeeping to c. All schedules
// are evaluated in c's location, which main pins to UTC.
func (j *jobs) register(ctx context.Context, c *cron.Cron, reconcileSchedule string) error {
	if _, err := c.AddFunc(reconcileSchedule, func() { j.sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", reconcileSchedule, err)
	}
	if _, err := c.AddFunc(recoverSchedule, func() { j.recoverStuck(ctx) }); err != nil {
		return fmt.Errorf("invalid recover schedule: %w", err)
	}
	if _, err := c.AddFunc(pruneSchedule, func() { j.prune(ctx) }); err != nil {
		return fmt.Errorf("invalid prune schedule: %w", err)
	}
	return nil
}

func (j *jobs) sweep(ctx context.Context) {
	if _, err := j.sweeper.Sweep(ctx); err != nil {
		slog.Error("reconcile sweep failed", "error", err)
	}
}

func (j *jobs) recoverStuck(ctx context.Context) {
	n, err := j.queue.RecoverStuck(ctx, j.stuckAfter)
	if err != nil {
		slog.Error("failed to recover stuck monitor tasks", "error", err)
		return
	}
	if n > 0 {
		slog.Warn("recovered stuck monitor tasks", "count", n)
	}
}

func (j *jobs) prune(ctx context.Context) {
	n, err := j.queue.Prune(ctx, j.retention)
	if err != nil {
		slog.Error("failed to prune monitor tasks", "error", err)
		return
	}
	if n > 0 {
		slog.Info("pruned finished monitor tasks", "count", n)
	}
}
