package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"thirdcoast.systems/thumbwatch/internal/application"
	"thirdcoast.systems/thumbwatch/internal/config"
	"thirdcoast.systems/thumbwatch/internal/db"
	"thirdcoast.systems/thumbwatch/internal/pipeline"
)

// backend is what the commands need from the database and pipeline.
type backend interface {
	Submit(ctx context.Context, rawURL string) (*db.Item, bool, error)
	ListItemsPage(ctx context.Context, limit, offset int) ([]*db.Item, error)
	CountItems(ctx context.Context) (int64, error)
	Check(ctx context.Context, itemID uuid.UUID) (*pipeline.CheckResult, error)
	Sweep(ctx context.Context) (pipeline.SweepReport, error)
}

// opener connects a backend. The returned func releases it.
type opener func(ctx context.Context) (backend, func(), error)

type liveBackend struct {
	*pipeline.Service
	*db.Queries
}

func openBackend(ctx context.Context) (backend, func(), error) {
	conf, err := config.LoadConfig(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("create database connection: %w", err)
	}

	svcs, err := application.NewServices(ctx, *conf, dbc)
	if err != nil {
		dbc.Close()
		return nil, nil, err
	}

	return liveBackend{Service: svcs.Pipeline, Queries: dbc.Queries(ctx)}, dbc.Close, nil
}

type commandContext struct {
	open opener
}

func (c *commandContext) withBackend(ctx context.Context, fn func(backend) error) error {
	b, release, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(b)
}
