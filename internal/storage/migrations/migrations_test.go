package migrations

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Selopol/padre-pump-backend/internal/storage/postgres"
)

func TestEmbeddedPostgresMigrations(t *testing.T) {
	all, err := load(PostgresFS, "postgres")
	require.NoError(t, err)

	var versions []string
	for _, m := range all {
		versions = append(versions, m.Version)
	}
	assert.Equal(t, []string{
		"001_creators",
		"002_coins",
		"003_migrations",
		"004_alerts",
		"005_views",
	}, versions)
}

func TestLoad_SortsAndSkipsBlankFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"db/002_second.sql": {Data: []byte("CREATE TABLE b (id INT);")},
		"db/001_first.sql":  {Data: []byte("CREATE TABLE a (id INT);")},
		"db/003_blank.sql":  {Data: []byte("  \n")},
		"db/README.md":      {Data: []byte("notes")},
	}

	all, err := load(fsys, "db")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "001_first", all[0].Version)
	assert.Equal(t, "001_first.sql", all[0].File)
	assert.Equal(t, "002_second", all[1].Version)

	_, err = load(fsys, "missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestPending_SkipsAppliedVersions(t *testing.T) {
	all := []Migration{{Version: "001_a"}, {Version: "002_b"}, {Version: "003_c"}}

	todo := pending(all, map[string]bool{"001_a": true, "003_c": true})
	require.Len(t, todo, 1)
	assert.Equal(t, "002_b", todo[0].Version)

	assert.Len(t, pending(all, nil), 3)
}

func TestEmbeddedClickhouseMigrationsSplit(t *testing.T) {
	all, err := load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, validateNoSemicolonInStrings(all[0].SQL))
	stmts := splitStatements(all[0].SQL)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "alert_events")
	assert.Contains(t, stmts[1], "migration_events")
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings("SELECT 'it''s'; SELECT 1;"))
	assert.NoError(t, validateNoSemicolonInStrings("SELECT ''; SELECT 2;"))
	assert.Error(t, validateNoSemicolonInStrings("SELECT 'a;b'"))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/padre")
	require.NoError(t, err)
	assert.Equal(t, "padre", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestRunPostgresMigrations_RecordsVersions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	applied, err := RunPostgresMigrations(ctx, pool, logger)
	require.NoError(t, err)
	assert.Equal(t, 5, applied)

	var logged []string
	for _, e := range hook.AllEntries() {
		if e.Message == "applied migration" {
			logged = append(logged, e.Data["version"].(string))
		}
	}
	assert.Equal(t, []string{"001_creators", "002_coins", "003_migrations", "004_alerts", "005_views"}, logged)

	var versions int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&versions))
	assert.Equal(t, 5, versions)

	// A second run finds every version recorded.
	hook.Reset()
	applied, err = RunPostgresMigrations(ctx, pool, logger)
	require.NoError(t, err)
	assert.Zero(t, applied)
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, "applied migration", e.Message)
	}
}
