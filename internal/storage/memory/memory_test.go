// internal/storage/memory/memory_test.go
package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/geomemo/geomemo/internal/config"
	"github.com/geomemo/geomemo/internal/storage"
	"github.com/geomemo/geomemo/internal/storage/storagetest"
	"github.com/geomemo/geomemo/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Verify Backend implements the storage interfaces
var (
	_ storage.Backend    = (*Backend)(nil)
	_ storage.Backupable = (*Backend)(nil)
)

func TestNew(t *testing.T) {
	b := New(config.MemoryConfig{SnapshotPath: "/tmp/test.json", CompressOutput: true})

	require.NotNil(t, b)
	assert.Equal(t, "/tmp/test.json", b.cfg.SnapshotPath)
	assert.True(t, b.cfg.CompressOutput)
	assert.NotNil(t, b.markers)
	assert.NotNil(t, b.imageOwner)
}

func TestBackendContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		b := New(config.MemoryConfig{})
		require.NoError(t, b.Init(context.Background()))
		return b
	})
}

func TestLoadMarkers_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	b := New(config.MemoryConfig{})
	require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "1"}))
	require.NoError(t, b.AddImage(ctx, core.Image{ID: "a", MarkerID: "1", URI: "u"}))

	first, err := b.LoadMarkers(ctx)
	require.NoError(t, err)
	first[0].Images[0].URI = "changed"

	second, err := b.LoadMarkers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u", second[0].Images[0].URI)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := New(config.MemoryConfig{})
	err := b.AddMarker(ctx, core.Marker{ID: "1"})
	assert.ErrorIs(t, err, core.ErrStore)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "gzip"}[compress], func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "markers.json")
			if compress {
				path += ".gz"
			}

			b := New(config.MemoryConfig{SnapshotPath: path, CompressOutput: compress})
			require.NoError(t, b.Init(ctx))
			require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "2", Latitude: 58.17, Longitude: 56.22}))
			require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "1"}))
			require.NoError(t, b.AddImage(ctx, core.Image{ID: "a", MarkerID: "2", URI: "file:///a.jpg"}))
			require.NoError(t, b.Close())

			reopened := New(config.MemoryConfig{SnapshotPath: path})
			require.NoError(t, reopened.Init(ctx))

			markers, err := reopened.LoadMarkers(ctx)
			require.NoError(t, err)
			require.Len(t, markers, 2)
			assert.Equal(t, "2", markers[0].ID)
			assert.Equal(t, 58.17, markers[0].Latitude)
			require.Len(t, markers[0].Images, 1)
			assert.Equal(t, "file:///a.jpg", markers[0].Images[0].URI)
			assert.Equal(t, "1", markers[1].ID)

			// restored image ids keep their uniqueness
			err = reopened.AddImage(ctx, core.Image{ID: "a", MarkerID: "1", URI: "x"})
			assert.ErrorIs(t, err, core.ErrConstraintViolation)
		})
	}
}

func TestSnapshot_CompressedWithJSONName(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "markers.json")

	b := New(config.MemoryConfig{SnapshotPath: path, CompressOutput: true})
	require.NoError(t, b.Init(ctx))
	require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "1", Latitude: 1, Longitude: 2}))
	require.NoError(t, b.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 2)
	assert.Equal(t, gzipMagic, raw[:2])

	// same file reopened by a compressing and a plain backend
	for _, compress := range []bool{true, false} {
		reopened := New(config.MemoryConfig{SnapshotPath: path, CompressOutput: compress})
		require.NoError(t, reopened.Init(ctx))
		markers, err := reopened.LoadMarkers(ctx)
		require.NoError(t, err)
		require.Len(t, markers, 1)
		assert.Equal(t, "1", markers[0].ID)
	}
}

func TestInit_MissingSnapshot(t *testing.T) {
	b := New(config.MemoryConfig{SnapshotPath: filepath.Join(t.TempDir(), "none.json")})
	require.NoError(t, b.Init(context.Background()))

	markers, err := b.LoadMarkers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, markers)
}

func TestInit_CorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	b := New(config.MemoryConfig{SnapshotPath: path})
	err := b.Init(context.Background())
	assert.ErrorIs(t, err, core.ErrStore)
}

func TestBackup(t *testing.T) {
	ctx := context.Background()
	b := New(config.MemoryConfig{})
	require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "1"}))

	out := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, b.Backup(ctx, out))

	snap, err := readSnapshot(out)
	require.NoError(t, err)
	assert.Equal(t, snapshotVersion, snap.Version)
	require.Len(t, snap.Markers, 1)
	assert.Equal(t, "1", snap.Markers[0].ID)
}
