package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "nested", "app.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrator_RunMigrations(t *testing.T) {
	db := newTestDB(t)
	fsys := fstest.MapFS{
		"002_add_widgets_name.sql": {Data: []byte(`ALTER TABLE widgets ADD COLUMN name TEXT;`)},
		"001_create_widgets.sql":   {Data: []byte(`CREATE TABLE widgets (id INTEGER PRIMARY KEY);`)},
		"README.md":                {Data: []byte("ignored")},
	}

	m := NewMigrator(db, zap.NewNop())
	require.NoError(t, m.RunMigrations(fsys))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 2, count)

	_, err := db.Exec(`INSERT INTO widgets (id, name) VALUES (1, 'gear')`)
	assert.NoError(t, err)

	// Re-running is a no-op.
	require.NoError(t, m.RunMigrations(fsys))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMigrator_RejectsDuplicateVersions(t *testing.T) {
	db := newTestDB(t)
	fsys := fstest.MapFS{
		"001_a.sql": {Data: []byte(`CREATE TABLE a (id INTEGER);`)},
		"001_b.sql": {Data: []byte(`CREATE TABLE b (id INTEGER);`)},
	}

	err := NewMigrator(db, zap.NewNop()).RunMigrations(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate migration version")
}

func TestMigrator_FailedMigrationIsNotRecorded(t *testing.T) {
	db := newTestDB(t)
	fsys := fstest.MapFS{
		"001_broken.sql": {Data: []byte(`CREATE TABLE;`)},
	}

	err := NewMigrator(db, zap.NewNop()).RunMigrations(fsys)
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestMigrator_RefusesEditedMigration(t *testing.T) {
	db := newTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	require.NoError(t, m.RunMigrations(fstest.MapFS{
		"001_create_documents.sql": {Data: []byte(`CREATE TABLE documents (id INTEGER PRIMARY KEY);`)},
	}))

	err := m.RunMigrations(fstest.MapFS{
		"001_create_documents.sql": {Data: []byte(`CREATE TABLE documents (id INTEGER PRIMARY KEY, amount TEXT);`)},
		"002_add_title.sql":        {Data: []byte(`ALTER TABLE documents ADD COLUMN title TEXT;`)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "changed after it was applied")

	// nothing after the drift is applied
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestParseMigrations(t *testing.T) {
	t.Run("sorted with checksums", func(t *testing.T) {
		got, err := ParseMigrations(fstest.MapFS{
			"sql/010_indexes.sql":  {Data: []byte(`CREATE INDEX i ON t(x);`)},
			"sql/002_history.sql":  {Data: []byte(`CREATE TABLE h (id INTEGER);`)},
			"sql/002_history.sql~": {Data: []byte(`backup`)},
			"sql/notes.txt":        {Data: []byte(`ignored`)},
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 2, got[0].Version)
		assert.Equal(t, "history", got[0].Name)
		assert.Equal(t, 10, got[1].Version)
		assert.Len(t, got[0].Checksum, 64)
		assert.NotEqual(t, got[0].Checksum, got[1].Checksum)
	})

	t.Run("bad version prefix", func(t *testing.T) {
		_, err := ParseMigrations(fstest.MapFS{
			"init.sql": {Data: []byte(`SELECT 1;`)},
		})
		assert.ErrorContains(t, err, "positive version number")
	})
}

func TestDSN(t *testing.T) {
	dsn := DSN("/tmp/x.db")
	assert.Contains(t, dsn, "_foreign_keys=on")
	assert.Contains(t, dsn, "_txlock=immediate")
}
