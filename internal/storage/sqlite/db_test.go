package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMigratesToLatest(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('sessions', 'frames')`).Scan(&n))
	assert.Equal(t, 2, n)

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "again.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, path, db.Path())

	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestMigrateDownAndUp(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.MigrateDown())
	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'frames'`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, db.MigrateUp())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestMigrateForce(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.MigrateForce(1))
	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}
