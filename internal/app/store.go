package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stocksavvy/stocksavvy/internal/platform/db"
	"github.com/stocksavvy/stocksavvy/internal/store"
	"github.com/stocksavvy/stocksavvy/internal/store/memory"
	"github.com/stocksavvy/stocksavvy/internal/store/mongo"
	"github.com/stocksavvy/stocksavvy/internal/store/postgres"
)

// OpenStore connects the configured document store and applies its migrations.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil
	case StoreMongo:
		st, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx, cfg.UniqueProductIDs); err != nil {
			_ = st.Close(ctx)
			return nil, err
		}
		logger.Info("connected store", slog.String("driver", cfg.StoreDriver), slog.String("database", cfg.MongoDatabase))
		return st, nil
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, err
		}
		st := postgres.New(pool)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("connected store", slog.String("driver", cfg.StoreDriver))
		return st, nil
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}
}
