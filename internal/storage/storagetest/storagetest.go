// Package storagetest holds behaviour tests shared by every storage.Backend.
package storagetest

import (
	"context"
	"sort"
	"testing"

	"github.com/geomemo/geomemo/internal/storage"
	"github.com/geomemo/geomemo/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, initialized backend for a single test.
type Factory func(t *testing.T) storage.Backend

// Run exercises the storage contract against backends built by newBackend.
func Run(t *testing.T, newBackend Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, b storage.Backend)
	}{
		{"EmptyStore", testEmptyStore},
		{"AddAndLoad", testAddAndLoad},
		{"DuplicateMarker", testDuplicateMarker},
		{"ImageForUnknownMarker", testImageForUnknownMarker},
		{"DuplicateImage", testDuplicateImage},
		{"RemoveImage", testRemoveImage},
		{"RemoveMarkerCascades", testRemoveMarkerCascades},
		{"RemoveAbsentIsNoop", testRemoveAbsentIsNoop},
		{"InitIdempotent", testInitIdempotent},
		{"InsertionOrder", testInsertionOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newBackend(t))
		})
	}
}

func testEmptyStore(t *testing.T, b storage.Backend) {
	markers, err := b.LoadMarkers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, markers)
	assert.Empty(t, markers)
}

func testAddAndLoad(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "1", Latitude: 58.1750, Longitude: 56.2280}))
	require.NoError(t, b.AddImage(ctx, core.Image{ID: "a", MarkerID: "1", URI: "file:///a.jpg"}))
	require.NoError(t, b.AddImage(ctx, core.Image{ID: "b", MarkerID: "1", URI: "file:///b.jpg"}))

	markers, err := b.LoadMarkers(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)

	m := markers[0]
	assert.Equal(t, "1", m.ID)
	assert.Equal(t, 58.1750, m.Latitude)
	assert.Equal(t, 56.2280, m.Longitude)
	assert.False(t, m.CreatedAt.IsZero())
	assert.ElementsMatch(t, []string{"a", "b"}, imageIDs(m))
	for _, img := range m.Images {
		assert.Equal(t, "1", img.MarkerID)
		assert.False(t, img.CreatedAt.IsZero())
	}
}

func testDuplicateMarker(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "1", Latitude: 1, Longitude: 2}))

	err := b.AddMarker(ctx, core.Marker{ID: "1", Latitude: 3, Longitude: 4})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConstraintViolation)
	assert.ErrorIs(t, err, core.ErrStore)

	markers, err := b.LoadMarkers(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, 1.0, markers[0].Latitude)
	assert.Equal(t, 2.0, markers[0].Longitude)
}

func testImageForUnknownMarker(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	err := b.AddImage(ctx, core.Image{ID: "a", MarkerID: "missing", URI: "file:///a.jpg"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConstraintViolation)

	markers, err := b.LoadMarkers(ctx)
	require.NoError(t, err)
	assert.Empty(t, markers)
}

func testDuplicateImage(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "1"}))
	require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "2"}))
	require.NoError(t, b.AddImage(ctx, core.Image{ID: "a", MarkerID: "1", URI: "u1"}))

	err := b.AddImage(ctx, core.Image{ID: "a", MarkerID: "2", URI: "u2"})
	assert.ErrorIs(t, err, core.ErrConstraintViolation)

	markers, err := b.LoadMarkers(ctx)
	require.NoError(t, err)
	byID := index(markers)
	assert.Equal(t, []string{"a"}, imageIDs(byID["1"]))
	assert.Empty(t, byID["2"].Images)
}

func testRemoveImage(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "1"}))
	require.NoError(t, b.AddImage(ctx, core.Image{ID: "a", MarkerID: "1", URI: "u"}))
	require.NoError(t, b.AddImage(ctx, core.Image{ID: "b", MarkerID: "1", URI: "u"}))

	require.NoError(t, b.RemoveImage(ctx, "a"))

	markers, err := b.LoadMarkers(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, []string{"b"}, imageIDs(markers[0]))
}

func testRemoveMarkerCascades(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "1"}))
	require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "2"}))
	require.NoError(t, b.AddImage(ctx, core.Image{ID: "a", MarkerID: "1", URI: "u"}))
	require.NoError(t, b.AddImage(ctx, core.Image{ID: "b", MarkerID: "2", URI: "u"}))

	require.NoError(t, b.RemoveMarker(ctx, "1"))

	markers, err := b.LoadMarkers(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, "2", markers[0].ID)
	assert.Equal(t, []string{"b"}, imageIDs(markers[0]))

	// the cascaded image id is free again
	require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "1"}))
	require.NoError(t, b.AddImage(ctx, core.Image{ID: "a", MarkerID: "1", URI: "u"}))
}

func testRemoveAbsentIsNoop(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "1"}))

	assert.NoError(t, b.RemoveMarker(ctx, "nope"))
	assert.NoError(t, b.RemoveImage(ctx, "nope"))

	markers, err := b.LoadMarkers(ctx)
	require.NoError(t, err)
	assert.Len(t, markers, 1)
}

func testInitIdempotent(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	require.NoError(t, b.AddMarker(ctx, core.Marker{ID: "1"}))
	require.NoError(t, b.AddImage(ctx, core.Image{ID: "a", MarkerID: "1", URI: "u"}))

	require.NoError(t, b.Init(ctx))

	markers, err := b.LoadMarkers(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, []string{"a"}, imageIDs(markers[0]))
}

func testInsertionOrder(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	for _, id := range []string{"30", "10", "20"} {
		require.NoError(t, b.AddMarker(ctx, core.Marker{ID: id}))
	}

	markers, err := b.LoadMarkers(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(markers))
	for _, m := range markers {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"30", "10", "20"}, ids)
}

func imageIDs(m core.Marker) []string {
	ids := make([]string, 0, len(m.Images))
	for _, img := range m.Images {
		ids = append(ids, img.ID)
	}
	sort.Strings(ids)
	return ids
}

func index(markers []core.Marker) map[string]core.Marker {
	out := make(map[string]core.Marker, len(markers))
	for _, m := range markers {
		out[m.ID] = m
	}
	return out
}
