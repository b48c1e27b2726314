package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, VerifyConfiguration(context.Background(), db))
}

func TestOpen_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	db, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Dir(dbPath))
	require.NoError(t, err)
}

func TestDefaultDBPath(t *testing.T) {
	t.Run("with PLUGINREG_BASE_PATH", func(t *testing.T) {
		t.Setenv("PLUGINREG_BASE_PATH", "/custom/path")
		path, err := DefaultDBPath()
		require.NoError(t, err)
		assert.Equal(t, "/custom/path/state.db", path)
	})

	t.Run("without PLUGINREG_BASE_PATH", func(t *testing.T) {
		t.Setenv("PLUGINREG_BASE_PATH", "")
		path, err := DefaultDBPath()
		require.NoError(t, err)
		home, _ := os.UserHomeDir()
		assert.Equal(t, filepath.Join(home, ".pluginreg", "state.db"), path)
	})
}

func TestVerifyConfigurationDetectsDrift(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("PRAGMA foreign_keys=OFF")
	require.NoError(t, err)
	err = VerifyConfiguration(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected foreign_keys 1, got 0")
}


func createTable(name string) Step {
	return func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, "CREATE TABLE "+name+" (id INTEGER PRIMARY KEY)")
		return err
	}
}

func dropTable(name string) Step {
	return func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, "DROP TABLE "+name)
		return err
	}
}

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sqlx.DB, name string) bool {
	t.Helper()
	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name))
	return count == 1
}

func TestMigrationRunner(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)

	// Declared out of order; applied by version.
	migrations := []Migration{
		{
			Version:     20240101000002,
			Description: "Add name column",
			Up: func(ctx context.Context, tx *sqlx.Tx) error {
				_, err := tx.ExecContext(ctx, "ALTER TABLE installs_test ADD COLUMN name TEXT")
				return err
			},
		},
		{Version: 20240101000001, Description: "Create installs_test", Up: createTable("installs_test")},
	}

	require.NoError(t, runner.Run(context.Background(), migrations))
	require.NoError(t, runner.Run(context.Background(), migrations), "second run is a no-op")

	versions, err := runner.GetAppliedVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{20240101000001, 20240101000002}, versions)

	_, err = db.Exec("INSERT INTO installs_test (id, name) VALUES (1, 'x')")
	assert.NoError(t, err)
}

func TestMigrationRunner_RejectsBadMigrations(t *testing.T) {
	tests := []struct {
		name       string
		migrations []Migration
		wantErr    string
	}{
		{
			name: "duplicate version",
			migrations: []Migration{
				{Version: 1, Up: createTable("a")},
				{Version: 1, Up: createTable("b")},
			},
			wantErr: "duplicate migration version 1",
		},
		{
			name:       "missing up",
			migrations: []Migration{{Version: 2}},
			wantErr:    "migration 2 has no up step",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t)
			err := NewMigrationRunner(db).Run(context.Background(), tt.migrations)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.False(t, tableExists(t, db, "a"))
		})
	}
}

func TestMigrationRunner_Rollback(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)

	migrations := []Migration{
		{Version: 20240101000001, Description: "Create a", Up: createTable("a"), Down: dropTable("a")},
		{Version: 20240101000002, Description: "Create b", Up: createTable("b")},
	}
	require.NoError(t, runner.Run(context.Background(), migrations))

	err := runner.Rollback(context.Background(), migrations)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 20240101000002 has no rollback function")

	migrations[1].Down = dropTable("b")
	require.NoError(t, runner.Rollback(context.Background(), migrations))
	assert.False(t, tableExists(t, db, "b"))
	assert.True(t, tableExists(t, db, "a"))

	require.NoError(t, runner.Rollback(context.Background(), migrations))
	require.NoError(t, runner.Rollback(context.Background(), migrations), "nothing left to roll back")

	versions, err := runner.GetAppliedVersions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, versions)

	require.NoError(t, runner.Run(context.Background(), migrations[:1]))
	err = runner.Rollback(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in provided migrations")
}

func TestMigrationRunner_Status(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)
	applied := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	runner.now = func() time.Time { return applied }

	migrations := []Migration{
		{Version: 20240101000001, Description: "Create a", Up: createTable("a")},
		{Version: 20240101000002, Description: "Create b", Up: createTable("b")},
	}
	require.NoError(t, runner.Run(context.Background(), migrations[:1]))

	status, err := runner.Status(context.Background(), migrations)
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.True(t, status[0].Applied())
	assert.True(t, applied.Equal(*status[0].AppliedAt))
	assert.Equal(t, "Create b", status[1].Description)
	assert.False(t, status[1].Applied())
}

func TestOpenMigrated(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	migrations := []Migration{{Version: 20240101000001, Description: "Create test table", Up: createTable("test_table")}}

	db, err := OpenMigrated(context.Background(), dbPath, migrations)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening applies nothing twice.
	db, err = OpenMigrated(context.Background(), dbPath, migrations)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM schema_migrations"))
	assert.Equal(t, 1, count)
}

func TestMigrationRunner_FailedMigrationIsNotRecorded(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)

	err := runner.Run(context.Background(), []Migration{
		{Version: 20240101000001, Description: "Create a", Up: createTable("a")},
		{
			Version:     20240101000002,
			Description: "Broken",
			Up: func(ctx context.Context, tx *sqlx.Tx) error {
				_, err := tx.ExecContext(ctx, "CREATE TABLE")
				return err
			},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply migration 20240101000002: Broken")

	versions, err := runner.GetAppliedVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{20240101000001}, versions)
}
