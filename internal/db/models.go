package db

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusScheduled TaskStatus = "scheduled"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCanceled  TaskStatus = "canceled"
)

// Item is one ingested video and its monitoring state.
type Item struct {
	ID                uuid.UUID  `json:"id"`
	SourceURL         string     `json:"source_url"`
	SourceID          string     `json:"source_id"`
	Title             string     `json:"title"`
	ArtifactKey       *string    `json:"artifact_key,omitempty"`
	OriginalAssetURL  string     `json:"original_asset_url"`
	DerivedAssetURL   string     `json:"derived_asset_url"`
	LastFingerprint   *string    `json:"last_fingerprint,omitempty"`
	CheckIntervalDays int        `json:"check_interval_days"`
	LastCheckedAt     *time.Time `json:"last_checked_at,omitempty"`
	NextCheckAt       *time.Time `json:"next_check_at,omitempty"`
	PendingTaskID     *uuid.UUID `json:"pending_task_id,omitempty"`
	LastCheckOutcome  *string    `json:"last_check_outcome,omitempty"`
	ChangeCount       int        `json:"change_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type MonitorTask struct {
	ID        uuid.UUID
	Task      string
	Payload   []byte
	RunAt     time.Time
	Status    TaskStatus
	Attempts  int
	LastError *string
}
