package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/netcraft/internal/logger"
)

const (
	defaultRetryInterval = 2 * time.Second
	defaultRetryAttempts = 30
)

//go:embed migrations/*.sql
var migrations embed.FS

// golang-migrate registers pgx driver under 'pgx5' scheme only
const migrateScheme = "pgx5://"

// Convert postgres dsn to the url golang-migrate understands
func migrateURL(dsn string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			return migrateScheme + rest
		}
	}
	return dsn
}

// Apply embedded migrations.
// See https://github.com/golang-migrate/migrate/blob/v4.18.1/source/iofs/example_test.go
func Migrate(dsn string) (err error) {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("cant read embedded migrations. Err: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(dsn))
	if err != nil {
		return fmt.Errorf("error while preparing migrator. Err: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error while applying migrations. Err: %w", err)
	}

	return nil
}

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cant initialize connection pool. Err: %w", err)
	}

	// pgxpool connects lazily, make sure the database is really there
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cant reach database. Err: %w", err)
	}

	return pool, nil
}

func ConnectAndMigrate(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	err := Migrate(dsn)
	if err != nil {
		return nil, err
	}

	return Connect(ctx, dsn)
}

type RetryConfig struct {
	Interval time.Duration
	Attempts uint64
}

// Connect and migrate with constant backoff
// Database may start slower than the service (docker compose and friends), so give it a chance
func ConnectAndMigrateWithRetry(ctx context.Context, dsn string, cfg RetryConfig, l logger.Logger) (*pgxpool.Pool, error) {
	if cfg.Interval == 0 {
		cfg.Interval = defaultRetryInterval
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = defaultRetryAttempts
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.Interval), cfg.Attempts),
		ctx,
	)

	var pool *pgxpool.Pool
	operation := func() error {
		var err error
		pool, err = ConnectAndMigrate(ctx, dsn)
		return err
	}
	notify := func(err error, next time.Duration) {
		l.Warn("database not ready, retrying", "error", err.Error(), "next_attempt_in", next)
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return nil, fmt.Errorf("database unavailable after retries: %w", err)
	}

	return pool, nil
}
