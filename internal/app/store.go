package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/drivinghours/internal/config"
	"example.com/drivinghours/internal/domain"
	"example.com/drivinghours/internal/persistence/memory"
	"example.com/drivinghours/internal/persistence/postgres"
	"example.com/drivinghours/internal/persistence/sqlite"
)

// Store is everything the binaries need from a persistence backend.
type Store interface {
	domain.ActivityRepository
	domain.AlertRecorder
	domain.DriverLister
}

// Backend is an opened Store. Pool is set only for the postgres driver, where
// the outbox and DLQ share it.
type Backend struct {
	Store Store
	Pool  *pgxpool.Pool
	close func() error
}

// Close releases the backend.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenStore opens the backend selected by cfg.StoreDriver. Postgres schemas
// are migrated before use.
func OpenStore(ctx context.Context, cfg config.Config) (*Backend, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &Backend{
			Store: postgres.NewRepository(pool),
			Pool:  pool,
			close: func() error { pool.Close(); return nil },
		}, nil
	case config.StoreDriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: store, close: store.Close}, nil
	case config.StoreDriverMemory:
		return &Backend{Store: memory.NewRepository()}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
