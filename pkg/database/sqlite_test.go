package database

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testMigrations = fstest.MapFS{
	"001_items.up.sql": {Data: []byte(`
		CREATE TABLE items (id TEXT PRIMARY KEY, name TEXT NOT NULL);
		CREATE INDEX idx_items_name ON items (name);
	`)},
	"002_items_seed.up.sql":   {Data: []byte(`INSERT INTO items (id, name) VALUES ('a', 'Linen Dress');`)},
	"002_items_seed.down.sql": {Data: []byte(`DELETE FROM items;`)},
	"README.md":               {Data: []byte("ignored")},
}

func TestOpenSQLite_CreatesDirectoryAndEnablesWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "catalog.db")

	db, err := OpenSQLite(context.Background(), SQLiteConfig{Path: path, MaxOpenConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = os.Stat(path)
	require.NoError(t, err)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), SQLiteConfig{})
	assert.Error(t, err)
}

func TestOpenSQLite_Memory(t *testing.T) {
	db, err := OpenSQLite(context.Background(), SQLiteConfig{Path: MemoryPath, MaxOpenConns: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestRunSQLiteMigrations_AppliesOnceInOrder(t *testing.T) {
	db, err := OpenSQLite(context.Background(), SQLiteConfig{Path: filepath.Join(t.TempDir(), "m.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, RunSQLiteMigrations(ctx, db, testMigrations, discardLogger()))
	require.NoError(t, RunSQLiteMigrations(ctx, db, testMigrations, discardLogger()), "second run is a no-op")

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&n))
	assert.Equal(t, 1, n, "seed migration applied exactly once")

	rows, err := db.Query("SELECT version FROM schema_migrations ORDER BY version")
	require.NoError(t, err)
	defer rows.Close()
	var versions []string
	for rows.Next() {
		var v string
		require.NoError(t, rows.Scan(&v))
		versions = append(versions, v)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"001_items.up.sql", "002_items_seed.up.sql"}, versions)
}

func TestRunSQLiteMigrations_FailureRollsBack(t *testing.T) {
	db, err := OpenSQLite(context.Background(), SQLiteConfig{Path: filepath.Join(t.TempDir(), "m.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bad := fstest.MapFS{
		"001_bad.up.sql": {Data: []byte(`CREATE TABLE ok (id TEXT); CREATE TABEL broken (id TEXT);`)},
	}
	err = RunSQLiteMigrations(context.Background(), db, bad, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_bad.up.sql")

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Zero(t, n)
}

func TestHandle_OpensLazilyAndRunsSetupOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazy.db")
	calls := 0
	h := NewHandle(SQLiteConfig{Path: path}, func(ctx context.Context, db *sql.DB) error {
		calls++
		return RunSQLiteMigrations(ctx, db, testMigrations, discardLogger())
	}, discardLogger())

	assert.False(t, h.Opened())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing touches disk before first use")

	db1, err := h.DB(context.Background())
	require.NoError(t, err)
	db2, err := h.DB(context.Background())
	require.NoError(t, err)

	assert.Same(t, db1, db2)
	assert.Equal(t, 1, calls)
	assert.True(t, h.Opened())
	assert.Equal(t, path, h.Path())

	require.NoError(t, h.Close())
	_, err = h.DB(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, h.Opened())
}

func TestHandle_FailedOpenIsRetried(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	h := NewHandle(SQLiteConfig{Path: filepath.Join(blocker, "catalog.db")}, nil, discardLogger())
	t.Cleanup(func() { _ = h.Close() })

	_, err := h.DB(context.Background())
	require.Error(t, err)
	assert.False(t, h.Opened())

	require.NoError(t, os.Remove(blocker))
	_, err = h.DB(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Opened())
}

func TestHandle_SetupFailureClosesDatabase(t *testing.T) {
	boom := errors.New("boom")
	h := NewHandle(SQLiteConfig{Path: filepath.Join(t.TempDir(), "s.db")},
		func(context.Context, *sql.DB) error { return boom }, discardLogger())

	_, err := h.DB(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, h.Opened())
}

func TestHandle_CloseUnopened(t *testing.T) {
	h := NewHandle(SQLiteConfig{Path: filepath.Join(t.TempDir(), "never.db")}, nil, nil)
	assert.NoError(t, h.Close())
}
