package worker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/geomemo/geomemo/internal/dispatcher"
	"github.com/geomemo/geomemo/internal/geo"
	"github.com/geomemo/geomemo/pkg/core"
)

// RegisterHandlers registers all command handlers with the dispatcher.
// Mutations and position samples are synchronous so they share one
// timeline. Transition recording is queued so a slow recorder cannot stall
// that timeline.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	if m.deps.Recorder != nil {
		d.Register(CmdTransition, m.handleTransition, dispatcher.Buffered(TransitionQueueSize), dispatcher.Logged())
	}

	d.Register(CmdMarkerAdd, m.handleMarkerAdd, dispatcher.Logged())
	d.Register(CmdMarkerRemove, m.handleMarkerRemove, dispatcher.Logged())
	d.Register(CmdImageAdd, m.handleImageAdd, dispatcher.Logged())
	d.Register(CmdImageRemove, m.handleImageRemove, dispatcher.Logged())
	d.Register(CmdMarkersList, m.handleMarkersList, dispatcher.Logged())
	d.Register(CmdMarkersNear, m.handleMarkersNear, dispatcher.Logged())
	d.Register(CmdPosition, m.handlePosition, dispatcher.Logged())
}

func requireArgs(e dispatcher.Event, min, max int) error {
	if n := len(e.Args); n < min || n > max {
		if min == max {
			return fmt.Errorf("%s expects %d arguments, got %d", e.Command, min, n)
		}
		return fmt.Errorf("%s expects %d to %d arguments, got %d", e.Command, min, max, n)
	}
	return nil
}

func parseLatLon(latStr, lonStr string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q: %w", latStr, err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q: %w", lonStr, err)
	}
	return lat, lon, nil
}

// :MARKER:ADD: <lat> <lon> [id]
func (m *Manager) handleMarkerAdd(ctx context.Context, e dispatcher.Event) (any, error) {
	if err := requireArgs(e, 2, 3); err != nil {
		return nil, err
	}
	lat, lon, err := parseLatLon(e.Args[0], e.Args[1])
	if err != nil {
		return nil, err
	}

	id := m.deps.Markers.NewMarkerID()
	if len(e.Args) == 3 {
		id = e.Args[2]
	}
	if err := m.deps.Markers.AddMarker(ctx, id, lat, lon); err != nil {
		return nil, fmt.Errorf("failed to add marker: %w", err)
	}

	marker, ok := m.deps.Markers.Marker(id)
	if !ok {
		return nil, fmt.Errorf("marker %q missing after reload", id)
	}
	return marker, nil
}

// :MARKER:REMOVE: <id>
func (m *Manager) handleMarkerRemove(ctx context.Context, e dispatcher.Event) (any, error) {
	if err := requireArgs(e, 1, 1); err != nil {
		return nil, err
	}
	if err := m.deps.Markers.RemoveMarker(ctx, e.Args[0]); err != nil {
		return nil, fmt.Errorf("failed to remove marker: %w", err)
	}
	return nil, nil
}

// :IMAGE:ADD: <markerID> <uri> [id]
func (m *Manager) handleImageAdd(ctx context.Context, e dispatcher.Event) (any, error) {
	if err := requireArgs(e, 2, 3); err != nil {
		return nil, err
	}
	id := m.deps.Markers.NewImageID()
	if len(e.Args) == 3 {
		id = e.Args[2]
	}
	if err := m.deps.Markers.AddImageToMarker(ctx, e.Args[0], id, e.Args[1]); err != nil {
		return nil, fmt.Errorf("failed to add image: %w", err)
	}
	return core.Image{ID: id, MarkerID: e.Args[0], URI: e.Args[1]}, nil
}

// :IMAGE:REMOVE: <id>
func (m *Manager) handleImageRemove(ctx context.Context, e dispatcher.Event) (any, error) {
	if err := requireArgs(e, 1, 1); err != nil {
		return nil, err
	}
	if err := m.deps.Markers.RemoveImageFromMarker(ctx, e.Args[0]); err != nil {
		return nil, fmt.Errorf("failed to remove image: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleMarkersList(ctx context.Context, e dispatcher.Event) (any, error) {
	if err := requireArgs(e, 0, 0); err != nil {
		return nil, err
	}
	return m.deps.Markers.Markers(), nil
}

// :MARKERS:NEAR: <lat> <lon> [radiusKm]
func (m *Manager) handleMarkersNear(ctx context.Context, e dispatcher.Event) (any, error) {
	if err := requireArgs(e, 2, 3); err != nil {
		return nil, err
	}
	lat, lon, err := parseLatLon(e.Args[0], e.Args[1])
	if err != nil {
		return nil, err
	}
	radius := DefaultNearRadiusKm
	if len(e.Args) == 3 {
		radius, err = strconv.ParseFloat(e.Args[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid radius %q: %w", e.Args[2], err)
		}
	}
	hits, err := m.deps.Markers.Near(lat, lon, radius)
	if err != nil {
		return nil, fmt.Errorf("failed to search markers: %w", err)
	}
	return hits, nil
}

// :POSITION: <lat> <lon> [RFC3339]
func (m *Manager) handlePosition(ctx context.Context, e dispatcher.Event) (any, error) {
	if m.deps.Watcher == nil {
		return nil, ErrNoWatcher
	}
	if err := requireArgs(e, 2, 3); err != nil {
		return nil, err
	}
	pos, err := geo.PositionFromString(strings.Join(e.Args, ","))
	if err != nil {
		return nil, err
	}
	if pos.Time.IsZero() {
		pos.Time = e.Timestamp.UTC()
	}

	events, err := m.deps.Watcher.Observe(ctx, pos)
	if err != nil {
		// transitions were still applied
		m.deps.Logger.Warn("Position processed with notification errors", "error", err)
	}
	return events, nil
}
