package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/thumbwatch/internal/db"
	"thirdcoast.systems/thumbwatch/internal/taskqueue"
	"thirdcoast.systems/thumbwatch/internal/videoid"
	"thirdcoast.systems/thumbwatch/internal/youtube"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeFetcher struct {
	mu         sync.Mutex
	title      string
	thumb      []byte
	metaErr    error
	thumbErr   error
	metaCalls  int
	thumbCalls int
}

func (f *fakeFetcher) FetchMetadata(_ context.Context, videoID string) (youtube.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	if f.metaErr != nil {
		return youtube.Metadata{}, f.metaErr
	}
	return youtube.Metadata{Title: f.title}, nil
}

func (f *fakeFetcher) FetchThumbnail(_ context.Context, videoID string) (youtube.Thumbnail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thumbCalls++
	if f.thumbErr != nil {
		return youtube.Thumbnail{}, f.thumbErr
	}
	return youtube.Thumbnail{
		URL:  "https://i.ytimg.com/vi/" + videoID + "/maxresdefault.jpg",
		Data: append([]byte(nil), f.thumb...),
	}, nil
}

func (f *fakeFetcher) setThumb(data []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thumb = data
	f.thumbErr = err
}

type fakeDecorator struct {
	mu   sync.Mutex
	err  error
	runs int
}

func (d *fakeDecorator) Decorate(raw []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runs++
	if d.err != nil {
		return nil, d.err
	}
	if bytes.HasPrefix(raw, []byte("corrupt")) {
		return nil, errors.New("undecodable")
	}
	return append([]byte("decorated:"), raw...), nil
}

func (d *fakeDecorator) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

type fakeAssets struct {
	mu      sync.Mutex
	objects map[string][]byte
	writes  int
	deleted []string
	err     error
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{objects: make(map[string][]byte)}
}

func (a *fakeAssets) Store(_ context.Context, key string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.writes++
	a.objects[key] = append([]byte(nil), data...)
	return nil
}

func (a *fakeAssets) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.objects, key)
	a.deleted = append(a.deleted, key)
	return nil
}

func (a *fakeAssets) URL(key string) string {
	return "https://thumbs.example.com/assets/" + key
}

func (a *fakeAssets) get(key string) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.objects[key]
}

type fakeItems struct {
	mu          sync.Mutex
	items       map[uuid.UUID]*db.Item
	order       []uuid.UUID
	beforeWrite func()
	recordErr   error
	scheduleErr error
	listErr     error
}

func newFakeItems() *fakeItems {
	return &fakeItems{items: make(map[uuid.UUID]*db.Item)}
}

func clone(i *db.Item) *db.Item {
	c := *i
	return &c
}

func (s *fakeItems) InsertItem(_ context.Context, arg *db.InsertItemParams) (*db.Item, error) {
	if s.beforeWrite != nil {
		s.beforeWrite()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.SourceID == arg.SourceID {
			return nil, errors.Join(db.ErrDuplicate, fmt.Errorf("source_id %s", arg.SourceID))
		}
	}
	checked := arg.LastCheckedAt
	item := &db.Item{
		ID:                arg.ID,
		SourceURL:         arg.SourceURL,
		SourceID:          arg.SourceID,
		Title:             arg.Title,
		ArtifactKey:       arg.ArtifactKey,
		OriginalAssetURL:  arg.OriginalAssetURL,
		DerivedAssetURL:   arg.DerivedAssetURL,
		LastFingerprint:   arg.LastFingerprint,
		CheckIntervalDays: arg.CheckIntervalDays,
		LastCheckedAt:     &checked,
		CreatedAt:         checked,
		UpdatedAt:         checked,
	}
	s.items[item.ID] = item
	s.order = append(s.order, item.ID)
	return clone(item), nil
}

// put stores an item directly, bypassing the pipeline.
func (s *fakeItems) put(item *db.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = clone(item)
	s.order = append(s.order, item.ID)
}

func (s *fakeItems) GetItem(_ context.Context, id uuid.UUID) (*db.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return clone(item), nil
}

func (s *fakeItems) GetItemBySourceID(_ context.Context, sourceID string) (*db.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.SourceID == sourceID {
			return clone(item), nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *fakeItems) ListItems(_ context.Context) ([]*db.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]*db.Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, clone(s.items[id]))
	}
	return out, nil
}

func (s *fakeItems) RecordItemCheck(_ context.Context, arg *db.RecordItemCheckParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	item, ok := s.items[arg.ID]
	if !ok {
		return db.ErrNotFound
	}
	if !sameTask(item.PendingTaskID, arg.ExpectedTaskID) {
		return db.ErrConflict
	}
	if arg.LastFingerprint != nil {
		fp := *arg.LastFingerprint
		item.LastFingerprint = &fp
	}
	checked := arg.LastCheckedAt
	outcome := arg.Outcome
	item.CheckIntervalDays = arg.CheckIntervalDays
	item.LastCheckedAt = &checked
	item.NextCheckAt = arg.NextCheckAt
	item.PendingTaskID = arg.PendingTaskID
	item.LastCheckOutcome = &outcome
	if arg.Changed {
		item.ChangeCount++
	}
	return nil
}

func (s *fakeItems) SetItemSchedule(_ context.Context, arg *db.SetItemScheduleParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduleErr != nil {
		return s.scheduleErr
	}
	item, ok := s.items[arg.ID]
	if !ok {
		return db.ErrNotFound
	}
	if !sameTask(item.PendingTaskID, arg.ExpectedTaskID) {
		return db.ErrConflict
	}
	item.PendingTaskID = arg.PendingTaskID
	item.NextCheckAt = arg.NextCheckAt
	item.CheckIntervalDays = arg.CheckIntervalDays
	return nil
}

func sameTask(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *fakeItems) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

type fakeTask struct {
	runAt   time.Time
	payload json.RawMessage
	status  taskqueue.Status
}

type fakeScheduler struct {
	mu          sync.Mutex
	tasks       map[uuid.UUID]*fakeTask
	scheduleErr error
	cancelErr   error
	inspectErr  map[uuid.UUID]error
	// beforeInspect runs once, outside the lock, ahead of the next Inspect.
	beforeInspect func()
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: make(map[uuid.UUID]*fakeTask), inspectErr: make(map[uuid.UUID]error)}
}

func (s *fakeScheduler) ScheduleAt(_ context.Context, runAt time.Time, task string, payload any) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduleErr != nil {
		return uuid.Nil, s.scheduleErr
	}
	if task != CheckTask {
		return uuid.Nil, fmt.Errorf("unexpected task %q", task)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	s.tasks[id] = &fakeTask{runAt: runAt, payload: raw, status: taskqueue.StatusScheduled}
	return id, nil
}

func (s *fakeScheduler) Cancel(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelErr != nil {
		return s.cancelErr
	}
	if t, ok := s.tasks[id]; ok && t.status == taskqueue.StatusScheduled {
		t.status = taskqueue.StatusCanceled
	}
	return nil
}

func (s *fakeScheduler) Inspect(_ context.Context, id uuid.UUID) (taskqueue.Status, error) {
	s.mu.Lock()
	hook := s.beforeInspect
	s.beforeInspect = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inspectErr[id]; err != nil {
		return "", err
	}
	t, ok := s.tasks[id]
	if !ok {
		return taskqueue.StatusMissing, nil
	}
	return t.status, nil
}

func (s *fakeScheduler) setScheduleErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleErr = err
}

func (s *fakeScheduler) setCancelErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelErr = err
}

func (s *fakeScheduler) setStatus(id uuid.UUID, st taskqueue.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id].status = st
}

func (s *fakeScheduler) forget(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

func (s *fakeScheduler) task(id uuid.UUID) fakeTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tasks[id]
}

// live returns the handles of tasks that would still run a check for itemID.
func (s *fakeScheduler) live(itemID uuid.UUID) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for id, t := range s.tasks {
		var p CheckPayload
		if err := json.Unmarshal(t.payload, &p); err != nil || p.ItemID != itemID {
			continue
		}
		if t.status.Live() {
			out = append(out, id)
		}
	}
	return out
}

// fire runs a task the way the task runner would.
func (s *fakeScheduler) fire(t *testing.T, svc *Service, id uuid.UUID) error {
	t.Helper()
	s.mu.Lock()
	task, ok := s.tasks[id]
	require.True(t, ok, "unknown task %s", id)
	require.Equal(t, taskqueue.StatusScheduled, task.status, "task %s not scheduled", id)
	task.status = taskqueue.StatusRunning
	payload := task.payload
	s.mu.Unlock()

	err := svc.HandleCheckTask(context.Background(), id, payload)

	s.mu.Lock()
	if err != nil {
		task.status = taskqueue.StatusFailed
	} else {
		task.status = taskqueue.StatusSucceeded
	}
	s.mu.Unlock()
	return err
}

// redeliver runs a task that already finished again, as stuck-task recovery
// would.
func (s *fakeScheduler) redeliver(t *testing.T, svc *Service, id uuid.UUID) error {
	t.Helper()
	s.mu.Lock()
	task, ok := s.tasks[id]
	require.True(t, ok, "unknown task %s", id)
	task.status = taskqueue.StatusScheduled
	s.mu.Unlock()
	return s.fire(t, svc, id)
}

type harness struct {
	svc       *Service
	clock     *fakeClock
	fetcher   *fakeFetcher
	decorator *fakeDecorator
	assets    *fakeAssets
	items     *fakeItems
	scheduler *fakeScheduler
	keys      int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:     &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		fetcher:   &fakeFetcher{title: "Never Gonna Give You Up", thumb: []byte("thumb-v1")},
		decorator: &fakeDecorator{},
		assets:    newFakeAssets(),
		items:     newFakeItems(),
		scheduler: newFakeScheduler(),
	}
	h.svc = New(Deps{
		Normalizer: videoid.Normalizer{},
		Fetcher:    h.fetcher,
		Decorator:  h.decorator,
		Assets:     h.assets,
		Items:      h.items,
		Scheduler:  h.scheduler,
		Backoff:    DefaultBackoff(),
		Now:        h.clock.Now,
		NewKey: func() string {
			h.keys++
			return fmt.Sprintf("key%05d.jpg", h.keys)
		},
	})
	return h
}

func (h *harness) item(t *testing.T, id uuid.UUID) *db.Item {
	t.Helper()
	item, err := h.items.GetItem(context.Background(), id)
	require.NoError(t, err)
	return item
}

// fireNext runs the item's pending task.
func (h *harness) fireNext(t *testing.T, id uuid.UUID) {
	t.Helper()
	item := h.item(t, id)
	require.NotNil(t, item.PendingTaskID, "item has no pending task")
	require.NoError(t, h.scheduler.fire(t, h.svc, *item.PendingTaskID))
}
