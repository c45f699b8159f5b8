package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"saathi-backend/internal/chat"
	"saathi-backend/internal/config"
	"saathi-backend/internal/database"
	"saathi-backend/internal/repository"
)

type storeFlags struct {
	backend     string
	redisURL    string
	databaseURL string
	sqlitePath  string
	ttl         time.Duration
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.backend, "store", envOr("STORE_BACKEND", config.StoreRedis), "store backend: redis, postgres or sqlite")
	cmd.Flags().StringVar(&f.redisURL, "redis-url", envOr("REDIS_URL", "redis://localhost:6379/0"), "Redis URL")
	cmd.Flags().StringVar(&f.databaseURL, "database-url", envOr("DATABASE_URL", ""), "PostgreSQL URL")
	cmd.Flags().StringVar(&f.sqlitePath, "sqlite-path", envOr("SQLITE_PATH", "./saathi-chat.db"), "SQLite database file")
	cmd.Flags().DurationVar(&f.ttl, "ttl", 2*time.Hour, "session TTL applied when the store touches a log")
}

// open connects to the configured store. The memory backend is rejected: a
// fresh in-process store never holds anything worth inspecting.
func (f *storeFlags) open(ctx context.Context) (chat.LogStore, func(), error) {
	switch f.backend {
	case config.StoreRedis:
		clients, err := database.NewRedisClients(f.redisURL)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisLogStore(clients.Store, f.ttl), clients.Close, nil
	case config.StorePostgres:
		if f.databaseURL == "" {
			return nil, nil, errors.New("--database-url is required for the postgres store")
		}
		pool, err := database.NewPostgresPool(f.databaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewChatLogRepo(pool, f.ttl), pool.Close, nil
	case config.StoreSQLite:
		s, err := repository.NewSQLiteLogStore(f.sqlitePath, f.ttl)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, errors.Errorf("unsupported store %q", f.backend)
	}
}
