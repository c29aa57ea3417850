package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/thumbwatch/internal/pipeline"
)

type fakeSweeper struct{ calls int }

func (f *fakeSweeper) Sweep(context.Context) (pipeline.SweepReport, error) {
	f.calls++
	return pipeline.SweepReport{Total: 3, Repaired: 1}, nil
}

type fakeMaintainer struct {
	stuckAfter time.Duration
	retention  time.Duration
	err        error
}

func (f *fakeMaintainer) RecoverStuck(_ context.Context, stuckAfter time.Duration) (int64, error) {
	f.stuckAfter = stuckAfter
	return 2, f.err
}

func (f *fakeMaintainer) Prune(_ context.Context, retention time.Duration) (int64, error) {
	f.retention = retention
	return 5, f.err
}

func TestJobsRegister(t *testing.T) {
	t.Parallel()
	j := &jobs{sweeper: &fakeSweeper{}, queue: &fakeMaintainer{}}

	c := cron.New(cron.WithLocation(time.UTC))
	require.NoError(t, j.register(context.Background(), c, "0 3 * * *"))
	require.Len(t, c.Entries(), 3)

	next := c.Entries()[0].Schedule.Next(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.Equal(t, time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC), next)
}

func TestJobsRegister_InvalidSchedule(t *testing.T) {
	t.Parallel()
	j := &jobs{sweeper: &fakeSweeper{}, queue: &fakeMaintainer{}}
	err := j.register(context.Background(), cron.New(), "every morning")
	require.Error(t, err)
	require.Contains(t, err.Error(), "reconcile schedule")
}

func TestJobsRun(t *testing.T) {
	t.Parallel()
	sw := &fakeSweeper{}
	m := &fakeMaintainer{}
	j := &jobs{sweeper: sw, queue: m, stuckAfter: 15 * time.Minute, retention: 720 * time.Hour}

	ctx := context.Background()
	j.sweep(ctx)
	j.recoverStuck(ctx)
	j.prune(ctx)
	require.Equal(t, 1, sw.calls)
	require.Equal(t, 15*time.Minute, m.stuckAfter)
	require.Equal(t, 720*time.Hour, m.retention)

	m.err = errors.New("db down")
	j.recoverStuck(ctx)
	j.prune(ctx)
}
