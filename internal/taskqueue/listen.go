package taskqueue

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thirdcoast.systems/thumbwatch/internal/db"
)

// Listen holds a dedicated connection subscribed to the monitor_tasks channel
// and signals wake on every notification. It reconnects until ctx is done.
func Listen(ctx context.Context, dsn string, wake chan<- struct{}) {
	const channel = "monitor_tasks"
	for {
		if ctx.Err() != nil {
			return
		}

		// Parse using pgxpool so pool_* DSN params are consumed client-side.
		poolConf, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			slog.Error("listen parse config failed", "channel", channel, "error", err)
			sleep(ctx, 2*time.Second)
			continue
		}

		conn, err := pgx.ConnectConfig(ctx, poolConf.ConnConfig)
		if err != nil {
			slog.Error("listen connect failed", "channel", channel, "error", err)
			sleep(ctx, 2*time.Second)
			continue
		}

		if err := db.New(conn).ListenMonitorTasks(ctx); err != nil {
			slog.Error("LISTEN failed", "channel", channel, "error", err)
			_ = conn.Close(context.Background())
			sleep(ctx, 2*time.Second)
			continue
		}

		for {
			if _, err := conn.WaitForNotification(ctx); err != nil {
				if ctx.Err() == nil {
					slog.Error("wait for notification failed", "channel", channel, "error", err)
				}
				_ = conn.Close(context.Background())
				break
			}

			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
