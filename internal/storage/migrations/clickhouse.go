package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Selopol/padre-pump-backend/internal/logging"
	chstore "github.com/Selopol/padre-pump-backend/internal/storage/clickhouse"
)

const chVersionTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    String,
    applied_at DateTime64(3) DEFAULT now64(3)
) ENGINE = ReplacingMergeTree()
ORDER BY version`

// RunClickhouseMigrations creates the DSN's database if needed, applies the
// embedded files not yet listed in its schema_migrations table and returns a
// connection to that database.
func RunClickhouseMigrations(ctx context.Context, dsn string, logger logrus.FieldLogger) (*chstore.Conn, error) {
	log := logging.OrDefault(logger).WithField("component", "migrations").WithField("db", "clickhouse")

	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	all, err := load(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		if err := validateNoSemicolonInStrings(m.SQL); err != nil {
			return nil, fmt.Errorf("validate migration %s: %w", m.File, err)
		}
	}

	if err := ensureClickhouseDatabase(ctx, dsn, dbName); err != nil {
		return nil, err
	}
	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	n, err := applyClickhouse(ctx, conn, all, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	log.WithFields(logrus.Fields{"database": dbName, "applied": n}).Debug("clickhouse schema up to date")
	return conn, nil
}

func ensureClickhouseDatabase(ctx context.Context, dsn, dbName string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

// applyClickhouse runs each pending file statement by statement, then records
// its version. ClickHouse has no transactions, so a file that fails halfway
// is re-run in full next time and must stay idempotent.
func applyClickhouse(ctx context.Context, conn *chstore.Conn, all []Migration, log logrus.FieldLogger) (int, error) {
	if err := conn.Exec(ctx, chVersionTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := chAppliedVersions(ctx, conn)
	if err != nil {
		return 0, err
	}

	todo := pending(all, applied)
	for _, m := range todo {
		stmts := splitStatements(m.SQL)
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				return 0, fmt.Errorf("apply migration %s: %w", m.File, err)
			}
		}
		if err := conn.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.Version); err != nil {
			return 0, fmt.Errorf("record migration %s: %w", m.File, err)
		}
		log.WithFields(logrus.Fields{"version": m.Version, "statements": len(stmts)}).Info("applied migration")
	}
	return len(todo), nil
}

func chAppliedVersions(ctx context.Context, conn *chstore.Conn) (map[string]bool, error) {
	rows, err := conn.Query(ctx, `SELECT DISTINCT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied migrations: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}
	return applied, nil
}

// splitStatements splits a file into statements on semicolons after dropping
// blank and "--" comment lines. Semicolons inside string literals are rejected
// beforehand by validateNoSemicolonInStrings; the driver has no multi-statement Exec.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects SQL with a semicolon inside a
// single-quoted literal. Doubled quotes are treated as escapes.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch ch := sql[i]; {
		case ch == '\'' && inString && i+1 < len(sql) && sql[i+1] == '\'':
			i++
		case ch == '\'':
			inString = !inString
		case ch == ';' && inString:
			return fmt.Errorf("semicolon inside string literal at offset %d", i)
		}
	}
	return nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
