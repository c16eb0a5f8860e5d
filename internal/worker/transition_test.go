package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/geomemo/geomemo/internal/config"
	"github.com/geomemo/geomemo/internal/dispatcher"
	"github.com/geomemo/geomemo/internal/markers"
	"github.com/geomemo/geomemo/internal/notify"
	"github.com/geomemo/geomemo/internal/proximity"
	"github.com/geomemo/geomemo/internal/storage/memory"
	"github.com/geomemo/geomemo/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	event proximity.Event
	pos   core.Position
}

type recordingSink struct {
	mu   sync.Mutex
	seen []recorded
}

func (s *recordingSink) RecordTransition(_ context.Context, e proximity.Event, pos core.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, recorded{event: e, pos: pos})
}

func (s *recordingSink) all() []recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recorded(nil), s.seen...)
}

func TestTransitionArgs_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 123, time.UTC)
	pos := core.Position{Latitude: 58.175, Longitude: 56.228, Time: ts}

	for _, e := range []proximity.Event{
		{Kind: proximity.Enter, MarkerID: "A", DistanceKm: 0.0111},
		{Kind: proximity.Exit, MarkerID: "B", Removed: true},
	} {
		gotEvent, gotPos, err := parseTransition(transitionArgs(e, pos))
		require.NoError(t, err)
		assert.Equal(t, e.Kind, gotEvent.Kind)
		assert.Equal(t, e.MarkerID, gotEvent.MarkerID)
		assert.Equal(t, e.DistanceKm, gotEvent.DistanceKm)
		assert.Equal(t, e.Removed, gotEvent.Removed)
		assert.Equal(t, pos.Latitude, gotPos.Latitude)
		assert.Equal(t, pos.Longitude, gotPos.Longitude)
		assert.True(t, ts.Equal(gotPos.Time))
	}
}

func TestParseTransition_Invalid(t *testing.T) {
	_, _, err := parseTransition([]string{"enter", "A"})
	assert.Error(t, err)

	_, _, err = parseTransition([]string{"hover", "A", "0", "1", "2", "2024-05-01T12:00:00Z"})
	assert.Error(t, err)

	_, _, err = parseTransition([]string{"enter", "A", "x", "1", "2", "2024-05-01T12:00:00Z"})
	assert.Error(t, err)

	_, _, err = parseTransition([]string{"enter", "A", "0", "1", "2", "yesterday"})
	assert.Error(t, err)
}

func TestTransition_NotRegisteredWithoutRecorder(t *testing.T) {
	h := newHarness(t, true)
	assert.False(t, h.d.HasHandler(CmdTransition))
}

func TestQueuedSink_FeedsRecorderThroughQueue(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := markers.NewService(markers.Dependencies{
		Backend: memory.New(config.MemoryConfig{}),
		Logger:  logger,
	})
	require.NoError(t, service.Initialize(ctx))
	require.NoError(t, service.AddMarker(ctx, "A", 58.1750, 56.2280))

	d, err := dispatcher.New(&mockLogger{})
	require.NoError(t, err)

	w, err := proximity.NewWatcher(service, notify.NewLogNotifier(io.Discard, logger), proximity.Options{
		Logger: logger,
		Sink:   NewQueuedSink(d, logger),
	})
	require.NoError(t, err)

	rec := &recordingSink{}
	NewManager(Dependencies{Markers: service, Watcher: w, Recorder: rec, Logger: logger}).RegisterHandlers(d)
	require.True(t, d.HasHandler(CmdTransition))

	h := &harness{d: d, service: service}
	_, err = h.run(t, "pos 58.1750 56.2280 2024-05-01T12:00:00Z")
	require.NoError(t, err)
	_, err = h.run(t, "pos 58.1000 56.2280 2024-05-01T12:01:00Z")
	require.NoError(t, err)

	// Close drains the queue
	d.Close()

	got := rec.all()
	require.Len(t, got, 2)
	assert.Equal(t, proximity.Enter, got[0].event.Kind)
	assert.Equal(t, "A", got[0].event.MarkerID)
	assert.True(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Equal(got[0].pos.Time))
	assert.Equal(t, proximity.Exit, got[1].event.Kind)
	assert.InDelta(t, 8.34, got[1].event.DistanceKm, 0.01)
	assert.Equal(t, 58.1, got[1].pos.Latitude)
}

func TestQueuedSink_ClosedQueueIsNotFatal(t *testing.T) {
	d, err := dispatcher.New(&mockLogger{})
	require.NoError(t, err)
	NewManager(Dependencies{Recorder: &recordingSink{}}).RegisterHandlers(d)
	d.Close()

	sink := NewQueuedSink(d, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NotPanics(t, func() {
		sink.RecordTransition(context.Background(), proximity.Event{Kind: proximity.Enter, MarkerID: "A"}, core.Position{})
	})
}
