package memory

import (
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "briefings.db")+"?_journal_mode=WAL")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrate_NewDatabase(t *testing.T) {
	db := rawDB(t)

	v, err := SchemaVersion(db)
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, Migrate(db, testLogger()))
	require.NoError(t, Migrate(db, testLogger()), "second run is a no-op")

	v, err = SchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, latestSchema, v)

	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&applied))
	assert.Equal(t, len(schemaSteps), applied)

	for _, table := range []string{"briefings", "briefing_messages", "llm_usage"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestMigrate_ColumnAddedByHand(t *testing.T) {
	db := rawDB(t)
	for _, stmt := range schemaSteps[0].stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	_, err := db.Exec(`ALTER TABLE briefings ADD COLUMN case_id TEXT DEFAULT ''`)
	require.NoError(t, err)

	require.NoError(t, Migrate(db, testLogger()))

	_, err = db.Exec(`INSERT INTO briefings (conversation_key, case_id, confirmed) VALUES ('web:1', 'logo', 1)`)
	assert.NoError(t, err, "v2 columns exist after upgrade")
}

func TestMigrate_StopsOnBrokenStep(t *testing.T) {
	prev := schemaSteps
	t.Cleanup(func() { schemaSteps = prev })
	schemaSteps = append(append([]schemaStep(nil), prev...), schemaStep{99, "broken", []string{
		`CREATE TABLE ok_before_failure (id INTEGER)`,
		`ALTER TABLE missing_table ADD COLUMN x TEXT`,
	}})

	db := rawDB(t)
	err := Migrate(db, testLogger())
	require.ErrorContains(t, err, "schema v99 (broken)")

	v, err := SchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, prev[len(prev)-1].version, v, "failed step is not recorded")

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name='ok_before_failure'`).Scan(&n))
	assert.Zero(t, n, "failed step is rolled back")
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "CREATE TABLE t (", firstLine("\n\t\tCREATE TABLE t (\n id INT\n)"))
	assert.Equal(t, "DROP INDEX i", firstLine("DROP INDEX i"))
}
