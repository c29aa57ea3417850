package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/thumbwatch/internal/db"
	"thirdcoast.systems/thumbwatch/internal/taskqueue"
	"thirdcoast.systems/thumbwatch/internal/youtube"
)

type Normalizer interface {
	Normalize(raw string) (string, error)
}

type Fetcher interface {
	FetchMetadata(ctx context.Context, videoID string) (youtube.Metadata, error)
	FetchThumbnail(ctx context.Context, videoID string) (youtube.Thumbnail, error)
}

type Decorator interface {
	Decorate(raw []byte) ([]byte, error)
}

// AssetStore overwrites by key.
type AssetStore interface {
	Store(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// ItemStore is implemented by *db.Queries.
type ItemStore interface {
	InsertItem(ctx context.Context, arg *db.InsertItemParams) (*db.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*db.Item, error)
	GetItemBySourceID(ctx context.Context, sourceID string) (*db.Item, error)
	ListItems(ctx context.Context) ([]*db.Item, error)
	RecordItemCheck(ctx context.Context, arg *db.RecordItemCheckParams) error
	SetItemSchedule(ctx context.Context, arg *db.SetItemScheduleParams) error
}

// Scheduler is implemented by *taskqueue.Queue.
type Scheduler interface {
	ScheduleAt(ctx context.Context, runAt time.Time, task string, payload any) (uuid.UUID, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	Inspect(ctx context.Context, id uuid.UUID) (taskqueue.Status, error)
}
