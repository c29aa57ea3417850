package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"thirdcoast.systems/thumbwatch/internal/application"
	"thirdcoast.systems/thumbwatch/internal/config"
	"thirdcoast.systems/thumbwatch/internal/db"
	"thirdcoast.systems/thumbwatch/internal/pipeline"
	"thirdcoast.systems/thumbwatch/internal/taskqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting monitor service")

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetLogLoggerLevel(conf.SlogLevel())

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		slog.Error("failed to create database connection", "error", err)
		os.Exit(1)
	}
	defer dbc.Close()

	svcs, err := application.NewServices(ctx, *conf, dbc)
	if err != nil {
		slog.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	j := &jobs{
		sweeper:    svcs.Pipeline,
		queue:      svcs.Queue,
		stuckAfter: conf.TaskStuckAfter,
		retention:  conf.TaskRetention,
	}

	// Tasks left running by a previous instance would otherwise never finish.
	slog.Info("Recovering stuck monitor tasks from previous service instances")
	j.recoverStuck(ctx)

	// A startup sweep closes any gap left while the service was down.
	j.sweep(ctx)

	c := cron.New(cron.WithLocation(time.UTC))
	if err := j.register(ctx, c, conf.ReconcileSchedule); err != nil {
		slog.Error("failed to schedule maintenance jobs", "error", err)
		os.Exit(1)
	}
	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	wake := make(chan struct{}, 1)
	go taskqueue.Listen(ctx, conf.DatabaseDSN, wake)

	runner := taskqueue.NewRunner(svcs.Queue, conf.MonitorWorkers, conf.MonitorPollInterval)
	runner.Handle(pipeline.CheckTask, svcs.Pipeline.HandleCheckTask)
	runner.Run(ctx, wake)

	slog.Info("Monitor service stopped")
}
