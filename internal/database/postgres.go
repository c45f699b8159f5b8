package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func NewPostgresPool(databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse database URL")
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return pool, nil
}

// RunMigrations applies the embedded migrations that have not run yet.
func RunMigrations(pool *pgxpool.Pool) error {
	return runMigrations(pool, migrationsFS, "migrations")
}

func runMigrations(pool *pgxpool.Pool, fsys fs.FS, dir string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to create migrations table")
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return errors.Wrap(err, "failed to read migrations directory")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		version, ok := migrationVersion(name)
		if !ok {
			continue
		}

		var exists bool
		err := pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&exists)
		if err != nil {
			return errors.Wrapf(err, "failed to check migration %d", version)
		}
		if exists {
			continue
		}

		content, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return errors.Wrapf(err, "failed to read migration %s", name)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return errors.Wrapf(err, "failed to begin transaction for migration %d", version)
		}

		if _, err := tx.Exec(ctx, string(content)); err != nil {
			_ = tx.Rollback(ctx)
			return errors.Wrapf(err, "failed to execute migration %d", version)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			_ = tx.Rollback(ctx)
			return errors.Wrapf(err, "failed to record migration %d", version)
		}

		if err := tx.Commit(ctx); err != nil {
			return errors.Wrapf(err, "failed to commit migration %d", version)
		}

		log.Info().Int("version", version).Str("file", name).Msg("applied migration")
	}

	return nil
}

// migrationVersion extracts the leading number of a file such as
// "001_chat_logs.sql".
func migrationVersion(name string) (int, bool) {
	if len(name) < 4 {
		return 0, false
	}
	version := 0
	if _, err := fmt.Sscanf(name[:3], "%d", &version); err != nil || version == 0 {
		return 0, false
	}
	return version, true
}
