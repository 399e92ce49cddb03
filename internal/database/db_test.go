package database_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildside/ghillie/internal/database"
	testingpkg "github.com/wildside/ghillie/internal/testing"
)

func tableNames(t *testing.T, db *database.DB) []string {
	t.Helper()

	rows, err := db.Conn().Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestMigrateCreatesTablesPerDatabase(t *testing.T) {
	cases := []struct {
		name   string
		tables []string
	}{
		{database.NameCatalogue, []string{
			"catalogue_imports", "component_edges", "components",
			"estates", "projects", "repository_records",
		}},
		{database.NameSilver, []string{
			"commits", "documentation_changes", "event_facts",
			"issues", "pull_requests", "repositories",
		}},
		{database.NameGold, []string{
			"report_coverage", "report_projects", "report_reviews", "reports",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, cleanup := testingpkg.NewTestDB(t, tc.name)
			defer cleanup()

			assert.Equal(t, tc.tables, tableNames(t, db))

			// Statements are IF NOT EXISTS, so a second run must succeed.
			require.NoError(t, db.Migrate())
			assert.Equal(t, tc.tables, tableNames(t, db))
		})
	}
}

func TestMigrateUnknownNameIsNoop(t *testing.T) {
	path, cleanup := testingpkg.CreateTempDBFile(t, "scratch")
	defer cleanup()

	db, err := database.New(database.Config{Path: path, Name: "scratch"})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, db.Migrate())
	assert.Empty(t, tableNames(t, db))
}

func TestWithTransactionContextCommitsAndRollsBack(t *testing.T) {
	db, cleanup := testingpkg.NewTestDBWithSchema(t, "scratch",
		`CREATE TABLE entries (id TEXT PRIMARY KEY, label TEXT NOT NULL)`)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, database.WithTransactionContext(ctx, db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO entries (id, label) VALUES ('a', 'kept')`)
		return err
	}))

	boom := errors.New("boom")
	err := database.WithTransactionContext(ctx, db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO entries (id, label) VALUES ('b', 'discarded')`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&count))
	assert.Equal(t, 1, count, "rolled-back insert must not persist")
}

func TestWithTransactionRecoversPanic(t *testing.T) {
	db, cleanup := testingpkg.NewTestDBWithSchema(t, "scratch",
		`CREATE TABLE entries (id TEXT PRIMARY KEY)`)
	defer cleanup()

	err := database.WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("store exploded")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store exploded")

	// The connection must still be usable after the recovered panic.
	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&count))
	assert.Zero(t, count)
}

func TestHealthCheckAndStats(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, database.NameSilver)
	defer cleanup()

	require.NoError(t, db.HealthCheck(context.Background()))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.SizeBytes, int64(0))
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}

func TestTimestampColumnsRoundTrip(t *testing.T) {
	at := time.Date(2026, 7, 8, 9, 30, 0, 123456789, time.FixedZone("BST", 3600))

	round := database.FromUnixNanos(database.UnixNanos(at))
	assert.True(t, round.Equal(at))
	assert.Equal(t, time.UTC, round.Location())

	assert.False(t, database.NullUnixNanos(nil).Valid)
	assert.Nil(t, database.FromNullUnixNanos(sql.NullInt64{}))

	opt := database.FromNullUnixNanos(database.NullUnixNanos(&at))
	require.NotNil(t, opt)
	assert.True(t, opt.Equal(at))
}

func TestStringListColumns(t *testing.T) {
	encoded, err := database.MarshalStringList(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", encoded, "nil slices store as the empty JSON array")

	decoded, err := database.UnmarshalStringList("")
	require.NoError(t, err)
	assert.Equal(t, []string{}, decoded)

	encoded, err = database.MarshalStringList([]string{"docs/", "README.md"})
	require.NoError(t, err)
	decoded, err = database.UnmarshalStringList(encoded)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/", "README.md"}, decoded)

	_, err = database.UnmarshalStringList("{not json")
	require.Error(t, err)
}
