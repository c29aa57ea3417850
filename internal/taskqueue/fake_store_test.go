package taskqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/thumbwatch/internal/db"
)

type memTask struct {
	db.MonitorTask
	startedAt  time.Time
	finishedAt time.Time
}

type memStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*memTask
	now   func() time.Time
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[uuid.UUID]*memTask), now: time.Now}
}

func (s *memStore) InsertMonitorTask(_ context.Context, arg *db.InsertMonitorTaskParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[arg.ID] = &memTask{MonitorTask: db.MonitorTask{
		ID:      arg.ID,
		Task:    arg.Task,
		Payload: arg.Payload,
		RunAt:   arg.RunAt,
		Status:  db.TaskStatusScheduled,
	}}
	return nil
}

func (s *memStore) GetMonitorTaskStatus(_ context.Context, id uuid.UUID) (db.TaskStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return "", db.ErrNotFound
	}
	return t.Status, nil
}

func (s *memStore) CancelMonitorTask(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Status != db.TaskStatusScheduled {
		return false, nil
	}
	t.Status = db.TaskStatusCanceled
	t.finishedAt = s.now()
	return true, nil
}

func (s *memStore) DequeueMonitorTask(_ context.Context) (*db.MonitorTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*memTask
	for _, t := range s.tasks {
		if t.Status == db.TaskStatusScheduled && !t.RunAt.After(s.now()) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil, db.ErrNotFound
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	t := due[0]
	t.Status = db.TaskStatusRunning
	t.Attempts++
	t.startedAt = s.now()
	out := t.MonitorTask
	return &out, nil
}

func (s *memStore) MarkMonitorTaskSucceeded(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok && t.Status == db.TaskStatusRunning {
		t.Status = db.TaskStatusSucceeded
		t.finishedAt = s.now()
	}
	return nil
}

func (s *memStore) MarkMonitorTaskFailed(_ context.Context, arg *db.MarkMonitorTaskFailedParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[arg.ID]; ok && t.Status == db.TaskStatusRunning {
		t.Status = db.TaskStatusFailed
		msg := arg.LastError
		t.LastError = &msg
		t.finishedAt = s.now()
	}
	return nil
}

func (s *memStore) RecoverStuckMonitorTasks(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, t := range s.tasks {
		if t.Status == db.TaskStatusRunning && t.startedAt.Before(cutoff) {
			t.Status = db.TaskStatusScheduled
			n++
		}
	}
	return n, nil
}

func (s *memStore) PruneMonitorTasks(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.tasks {
		switch t.Status {
		case db.TaskStatusSucceeded, db.TaskStatusFailed, db.TaskStatusCanceled:
			if t.finishedAt.Before(before) {
				delete(s.tasks, id)
				n++
			}
		}
	}
	return n, nil
}

func (s *memStore) status(id uuid.UUID) db.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		return t.Status
	}
	return ""
}

func (s *memStore) setStartedAt(id uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id].startedAt = at
}
