package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, path string) *Manager {
	t.Helper()
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.Connect(path))
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.Setup())
	return m
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", DSN(""))
	assert.Equal(t, DSN(""), DSN(MemoryPath))
	assert.Equal(t, "/tmp/x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", DSN("/tmp/x.db"))
}

func TestSetup_CreatesTables(t *testing.T) {
	m := newTestManager(t, filepath.Join(t.TempDir(), "geomemo.db"))

	assert.True(t, m.DB.Migrator().HasTable("markers"))
	assert.True(t, m.DB.Migrator().HasTable("marker_images"))
	assert.True(t, m.DB.Migrator().HasIndex("marker_images", "idx_marker_images_marker_id"))

	on, err := m.ForeignKeysEnabled()
	require.NoError(t, err)
	assert.True(t, on)
}

func TestSetup_IdempotentNoDataLoss(t *testing.T) {
	m := newTestManager(t, filepath.Join(t.TempDir(), "geomemo.db"))

	require.NoError(t, m.DB.Exec("INSERT INTO markers (id, latitude, longitude) VALUES ('1', 58.17, 56.22)").Error)
	require.NoError(t, m.DB.Exec("INSERT INTO marker_images (id, marker_id, uri) VALUES ('i', '1', 'file:///a.jpg')").Error)

	require.NoError(t, m.Setup())
	require.NoError(t, m.Setup())

	var markers, images int64
	require.NoError(t, m.DB.Table("markers").Count(&markers).Error)
	require.NoError(t, m.DB.Table("marker_images").Count(&images).Error)
	assert.Equal(t, int64(1), markers)
	assert.Equal(t, int64(1), images)
}

func TestSetup_CascadeOnDelete(t *testing.T) {
	m := newTestManager(t, MemoryPath)

	require.NoError(t, m.DB.Exec("INSERT INTO markers (id, latitude, longitude) VALUES ('1', 0, 0), ('2', 1, 1)").Error)
	require.NoError(t, m.DB.Exec("INSERT INTO marker_images (id, marker_id, uri) VALUES ('a', '1', 'u'), ('b', '2', 'u')").Error)
	require.NoError(t, m.DB.Exec("DELETE FROM markers WHERE id = '1'").Error)

	var ids []string
	require.NoError(t, m.DB.Table("marker_images").Pluck("id", &ids).Error)
	assert.Equal(t, []string{"b"}, ids)
}

func TestSetup_NotConnected(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.Error(t, m.Setup())
}

func TestDumpToDisk(t *testing.T) {
	m := newTestManager(t, MemoryPath)
	require.NoError(t, m.DB.Exec("INSERT INTO markers (id, latitude, longitude) VALUES ('1', 58.17, 56.22)").Error)

	out := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, os.WriteFile(out, []byte("stale"), 0o644))
	require.NoError(t, m.DumpToDisk(out))

	restored := newTestManager(t, out)
	var count int64
	require.NoError(t, restored.DB.Table("markers").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDumpToDisk_EmptyPath(t *testing.T) {
	m := newTestManager(t, MemoryPath)
	assert.Error(t, m.DumpToDisk(""))
}
