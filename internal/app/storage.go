package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/kitchen-rush/db"
	"github.com/xenking/kitchen-rush/internal/domain/catalog"
	"github.com/xenking/kitchen-rush/internal/domain/ledger"
	"github.com/xenking/kitchen-rush/internal/domain/order"
	"github.com/xenking/kitchen-rush/internal/storage/memory"
	"github.com/xenking/kitchen-rush/internal/storage/postgres"
)

// storage bundles the repositories of one backend.
type storage struct {
	catalog catalog.Repository
	orders  order.Repository
	ledger  ledger.Store
	// pool is nil for the memory backend.
	pool *pgxpool.Pool
}

func (s *storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// openStorage connects the configured backend. PostgreSQL is migrated and the
// embedded catalog is upserted, so a fresh database is playable right away.
func openStorage(ctx context.Context, lg *zap.Logger, cfg *Config) (*storage, error) {
	seed, err := catalog.ParseSeed(db.Catalog)
	if err != nil {
		return nil, errors.Wrap(err, "parse catalog seed")
	}

	if cfg.Storage == StorageMemory {
		lg.Warn("Using in-memory storage: progress is lost on restart")
		return &storage{
			catalog: memory.NewCatalog(seed.Ingredients, seed.Recipes),
			orders:  memory.NewOrderStore(),
			ledger:  memory.NewLedgerStore(),
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	cat := postgres.NewCatalogRepository(pool)
	if err := cat.Seed(ctx, seed); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "seed catalog")
	}
	lg.Info("Catalog seeded",
		zap.Int("ingredients", len(seed.Ingredients)),
		zap.Int("recipes", len(seed.Recipes)),
	)

	return &storage{
		catalog: cat,
		orders:  postgres.NewOrderRepository(pool),
		ledger:  postgres.NewLedgerStore(pool),
		pool:    pool,
	}, nil
}
