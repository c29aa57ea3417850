//go:build integration

package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/thumbwatch/internal/db/dbtest"
)

var pg *dbtest.Postgres

func TestMain(m *testing.M) {
	var err error
	pg, err = dbtest.Start(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}
	code := m.Run()
	pg.Close()
	os.Exit(code)
}

func pgQueue(t *testing.T) *Queue {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, pg.Reset(ctx))
	return New(pg.DB.Queries(ctx))
}

func TestPostgresQueue_ScheduleRunInspect(t *testing.T) {
	q := pgQueue(t)
	ctx := context.Background()

	due, err := q.ScheduleAt(ctx, time.Now().Add(-time.Second), "echo", map[string]string{"msg": "hi"})
	require.NoError(t, err)
	future, err := q.ScheduleAt(ctx, time.Now().Add(time.Hour), "echo", map[string]string{"msg": "later"})
	require.NoError(t, err)

	var got []string
	r := NewRunner(q, 1, time.Second)
	r.Handle("echo", func(_ context.Context, _ uuid.UUID, payload json.RawMessage) error {
		var p map[string]string
		require.NoError(t, json.Unmarshal(payload, &p))
		got = append(got, p["msg"])
		return nil
	})

	require.Equal(t, 1, r.Drain(ctx))
	require.Equal(t, []string{"hi"}, got)

	status, err := q.Inspect(ctx, due)
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, status)

	status, err = q.Inspect(ctx, future)
	require.NoError(t, err)
	require.Equal(t, StatusScheduled, status)
	require.True(t, status.Live())

	require.NoError(t, q.Cancel(ctx, future))
	require.NoError(t, q.Cancel(ctx, future))
	status, err = q.Inspect(ctx, future)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, status)

	n, err := q.Prune(ctx, -time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	status, err = q.Inspect(ctx, due)
	require.NoError(t, err)
	require.Equal(t, StatusMissing, status)
}

func TestPostgresQueue_ListenWakesOnDueTask(t *testing.T) {
	q := pgQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wake := make(chan struct{}, 1)
	go Listen(ctx, pg.DSN, wake)

	// LISTEN is asynchronous; keep arming due tasks until one notification lands.
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		_, err := q.ScheduleAt(ctx, time.Now().Add(-time.Second), "noop", struct{}{})
		require.NoError(t, err)
		select {
		case <-wake:
			return
		case <-ticker.C:
		case <-ctx.Done():
			t.Fatal("no notification received")
		}
	}
}
