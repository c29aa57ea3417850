// Package dbtest starts a throwaway PostgreSQL for integration tests.
package dbtest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"thirdcoast.systems/thumbwatch/internal/db"
)

// Postgres is a running container with the schema migrated.
type Postgres struct {
	DSN       string
	DB        *db.DatabaseConnection
	container testcontainers.Container
}

// Start launches postgres:16-alpine and applies the embedded migrations.
func Start(ctx context.Context) (*Postgres, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "thumbwatch",
		},
		// The entrypoint restarts the server once after init.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, err
	}
	pg := &Postgres{container: container}

	host, err := container.Host(ctx)
	if err != nil {
		pg.Close()
		return nil, err
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		pg.Close()
		return nil, err
	}
	pg.DSN = fmt.Sprintf("postgres://postgres:postgres@%s:%s/thumbwatch?sslmode=disable", host, port.Port())

	pool, err := pgxpool.New(ctx, pg.DSN)
	if err != nil {
		pg.Close()
		return nil, err
	}
	pg.DB, err = db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		pool.Close()
		pg.Close()
		return nil, err
	}
	if err := pg.DB.Migrate(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return pg, nil
}

// Reset empties every table.
func (p *Postgres) Reset(ctx context.Context) error {
	_, err := p.DB.Exec(ctx, `TRUNCATE TABLE items, monitor_tasks`)
	return err
}

func (p *Postgres) Close() {
	if p.DB != nil {
		p.DB.Close()
	}
	if p.container != nil {
		termCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = p.container.Terminate(termCtx)
	}
}
