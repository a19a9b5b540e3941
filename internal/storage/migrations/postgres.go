package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/Selopol/padre-pump-backend/internal/logging"
	"github.com/Selopol/padre-pump-backend/internal/storage/postgres"
)

const pgVersionTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunPostgresMigrations applies embedded files not yet listed in schema_migrations.
// Each file runs in its own transaction together with its version row.
// It returns the number of files applied.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, logger logrus.FieldLogger) (int, error) {
	log := logging.OrDefault(logger).WithField("component", "migrations").WithField("db", "postgres")

	all, err := load(PostgresFS, "postgres")
	if err != nil {
		return 0, err
	}
	if _, err := pool.Exec(ctx, pgVersionTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := pgAppliedVersions(ctx, pool)
	if err != nil {
		return 0, err
	}

	todo := pending(all, applied)
	for _, m := range todo {
		if err := pgApply(ctx, pool, m); err != nil {
			return 0, err
		}
		log.WithField("version", m.Version).Info("applied migration")
	}
	log.WithFields(logrus.Fields{
		"applied": len(todo),
		"current": len(all) - len(todo),
	}).Debug("postgres schema up to date")
	return len(todo), nil
}

func pgAppliedVersions(ctx context.Context, pool *postgres.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func pgApply(ctx context.Context, pool *postgres.Pool, m Migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.File, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return fmt.Errorf("apply migration %s: %w", m.File, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
		return fmt.Errorf("record migration %s: %w", m.File, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.File, err)
	}
	return nil
}
