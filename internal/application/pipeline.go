package application

import (
	"context"
	"fmt"

	"thirdcoast.systems/thumbwatch/internal/assetstore"
	"thirdcoast.systems/thumbwatch/internal/config"
	"thirdcoast.systems/thumbwatch/internal/db"
	"thirdcoast.systems/thumbwatch/internal/pipeline"
	"thirdcoast.systems/thumbwatch/internal/taskqueue"
	"thirdcoast.systems/thumbwatch/internal/videoid"
	"thirdcoast.systems/thumbwatch/internal/youtube"
	"thirdcoast.systems/thumbwatch/pkg/playicon"
)

// Services bundles the collaborators every binary wires the same way.
type Services struct {
	Pipeline *pipeline.Service
	Queue    *taskqueue.Queue
	Assets   *assetstore.Disk
}

// BackoffFromConfig maps the interval settings onto the monitor backoff.
func BackoffFromConfig(conf config.Config) pipeline.Backoff {
	return pipeline.Backoff{
		MinDays: conf.MinIntervalDays,
		MaxDays: conf.MaxIntervalDays,
		Growth:  conf.IntervalGrowthFactor,
	}
}

// NewServices builds the ingestion pipeline on top of dbc.
func NewServices(ctx context.Context, conf config.Config, dbc *db.DatabaseConnection) (*Services, error) {
	assets, err := assetstore.NewDisk(conf.AssetDir, conf.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("init asset store: %w", err)
	}

	q := dbc.Queries(ctx)
	queue := taskqueue.New(q)

	svc := pipeline.New(pipeline.Deps{
		Normalizer: videoid.Normalizer{},
		Fetcher:    youtube.NewClient(conf.YouTubeOEmbedURL, conf.YouTubeThumbnailBaseURL, conf.UpstreamTimeout),
		Decorator:  playicon.Decorator{Quality: playicon.DefaultQuality},
		Assets:     assets,
		Items:      q,
		Scheduler:  queue,
		Backoff:    BackoffFromConfig(conf),
	})

	return &Services{Pipeline: svc, Queue: queue, Assets: assets}, nil
}
