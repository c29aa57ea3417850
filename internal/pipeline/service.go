// Package pipeline ingests YouTube references into items with a decorated
// thumbnail and keeps those thumbnails fresh with a self-rearming monitor.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/thumbwatch/internal/assetstore"
	"thirdcoast.systems/thumbwatch/internal/db"
	"thirdcoast.systems/thumbwatch/pkg/utils/fingerprint"
)

// CheckTask is the task name monitor runs are scheduled under.
const CheckTask = "thumbnail.check"

const day = 24 * time.Hour

// CheckPayload is the task payload of a monitor run.
type CheckPayload struct {
	ItemID uuid.UUID `json:"item_id"`
}

type Deps struct {
	Normalizer Normalizer
	Fetcher    Fetcher
	Decorator  Decorator
	Assets     AssetStore
	Items      ItemStore
	Scheduler  Scheduler
	Backoff    Backoff

	// Optional; defaults are the real clock, fingerprint.Sum and
	// assetstore.NewKey.
	Now         func() time.Time
	Fingerprint func([]byte) string
	NewKey      func() string
}

type Service struct {
	normalizer  Normalizer
	fetcher     Fetcher
	decorator   Decorator
	assets      AssetStore
	items       ItemStore
	scheduler   Scheduler
	backoff     Backoff
	now         func() time.Time
	fingerprint func([]byte) string
	newKey      func() string
}

func New(deps Deps) *Service {
	s := &Service{
		normalizer:  deps.Normalizer,
		fetcher:     deps.Fetcher,
		decorator:   deps.Decorator,
		assets:      deps.Assets,
		items:       deps.Items,
		scheduler:   deps.Scheduler,
		backoff:     deps.Backoff.normalized(),
		now:         deps.Now,
		fingerprint: deps.Fingerprint,
		newKey:      deps.NewKey,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.fingerprint == nil {
		s.fingerprint = fingerprint.Sum
	}
	if s.newKey == nil {
		s.newKey = assetstore.NewKey
	}
	return s
}

// arm schedules the next monitor run for itemID intervalDays from now.
func (s *Service) arm(ctx context.Context, itemID uuid.UUID, intervalDays int) (uuid.UUID, time.Time, error) {
	runAt := s.now().Add(time.Duration(intervalDays) * day)
	taskID, err := s.scheduler.ScheduleAt(ctx, runAt, CheckTask, CheckPayload{ItemID: itemID})
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}
	return taskID, runAt, nil
}

// armAndRecord arms a run and stores the handle and interval on the item,
// provided the item's pending task is still expected. When the item cannot
// be updated the new task is cancelled so no untracked chain survives.
func (s *Service) armAndRecord(ctx context.Context, itemID uuid.UUID, expected *uuid.UUID, intervalDays int) (uuid.UUID, time.Time, error) {
	taskID, runAt, err := s.arm(ctx, itemID, intervalDays)
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}
	if err := s.items.SetItemSchedule(ctx, &db.SetItemScheduleParams{
		ID:                itemID,
		PendingTaskID:     &taskID,
		NextCheckAt:       &runAt,
		CheckIntervalDays: intervalDays,
		ExpectedTaskID:    expected,
	}); err != nil {
		_ = s.scheduler.Cancel(ctx, taskID)
		return uuid.Nil, time.Time{}, err
	}
	return taskID, runAt, nil
}
