package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textservice/internal/attribute"
	"textservice/internal/host"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "styles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDirectory(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "subdir", "nested", "styles.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("DisplayAttributeInput")
	assert.ErrorIs(t, err, host.ErrNotFound)
}

func TestPutGetDelete(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("DisplayAttributeInput", []byte{1, 2, 3}))
	got, err := s.Get("DisplayAttributeInput")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	require.NoError(t, s.Put("DisplayAttributeInput", []byte{4}))
	got, err = s.Get("DisplayAttributeInput")
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, got)

	require.NoError(t, s.Delete("DisplayAttributeInput"))
	_, err = s.Get("DisplayAttributeInput")
	assert.ErrorIs(t, err, host.ErrNotFound)
	assert.ErrorIs(t, s.Delete("DisplayAttributeInput"), host.ErrNotFound)
}

func TestList(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put("b", []byte{2}))
	require.NoError(t, s.Put("a", []byte{1}))

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "b", entries[1].Name)
	assert.Equal(t, []byte{2}, entries[1].Record)
	assert.False(t, entries[0].UpdatedAt.IsZero())
}

func TestReopenKeepsOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styles.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("DisplayAttributeConverted", []byte{9}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get("DisplayAttributeConverted")
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, got)
}

func TestMigrations(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	status, err := GetMigrationStatus(db)
	require.NoError(t, err)
	assert.Equal(t, 0, status.CurrentVersion)
	assert.Len(t, status.Pending, len(migrations))

	require.NoError(t, MigrateDB(db))
	require.NoError(t, MigrateDB(db))
	require.NoError(t, ValidateSchema(db))

	status, err = GetMigrationStatus(db)
	require.NoError(t, err)
	assert.Equal(t, status.LatestVersion, status.CurrentVersion)
	assert.Empty(t, status.Pending)

	require.NoError(t, RollbackMigration(db))
	require.NoError(t, RollbackMigration(db))
	assert.Error(t, ValidateSchema(db))
	assert.Error(t, RollbackMigration(db))
}

func TestStoreMigrationStatusAndRollback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styles.db")
	s, err := Open(path)
	require.NoError(t, err)

	status, err := s.MigrationStatus()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), status.CurrentVersion)
	assert.Empty(t, status.Pending)

	require.NoError(t, s.RollbackMigration())
	status, err = s.MigrationStatus()
	require.NoError(t, err)
	assert.Equal(t, len(migrations)-1, status.CurrentVersion)
	require.Len(t, status.Pending, 1)
	assert.Equal(t, len(migrations), status.Pending[0].Version)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	status, err = s.MigrationStatus()
	require.NoError(t, err)
	assert.Empty(t, status.Pending)
}

func TestOpenRejectsBrokenSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "styles.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	require.NoError(t, MigrateDB(db))
	_, err = db.Exec("DROP TABLE style_overrides")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "style_overrides")
}

func TestProviderOverStore(t *testing.T) {
	s := openTestStore(t)
	p := attribute.NewProvider(s, nil)

	info, err := p.Info(attribute.GUIDConverted)
	require.NoError(t, err)
	assert.Equal(t, attribute.Converted.Default(), info.Value())

	custom := attribute.Record{
		Text:       attribute.RGB(0, 0, 0),
		Background: attribute.RGB(255, 255, 0),
		Attr:       attribute.AttrTargetConverted,
	}
	require.NoError(t, info.SetValue(custom))
	assert.Equal(t, custom, info.Value())

	entries, err := s.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, attribute.Converted.Name(), entries[0].Name)
	assert.Len(t, entries[0].Record, attribute.RecordSize)

	require.NoError(t, info.Reset())
	assert.Equal(t, attribute.Converted.Default(), info.Value())
	require.NoError(t, info.Reset())
}

func TestOpenBackend(t *testing.T) {
	b, err := OpenBackend(KindSQLite, filepath.Join(t.TempDir(), "styles.db"))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = OpenBackend("etcd", "")
	assert.Error(t, err)
}
