package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/geomemo/geomemo/internal/dispatcher"
	"github.com/geomemo/geomemo/internal/proximity"
	"github.com/geomemo/geomemo/pkg/core"
)

// CmdTransition carries one watcher transition to the recorder queue.
// Args: kind markerID distanceKm lat lon RFC3339Nano [removed]
const CmdTransition = ":TRANSITION:"

// TransitionQueueSize bounds the recorder queue. Transitions beyond it are
// dropped rather than stalling the watcher.
const TransitionQueueSize = 1000

// QueuedSink is a proximity.Sink that hands transitions to the dispatcher
// queue registered for CmdTransition.
type QueuedSink struct {
	d      *dispatcher.Dispatcher
	logger *slog.Logger
}

var _ proximity.Sink = (*QueuedSink)(nil)

// NewQueuedSink creates a sink dispatching to d.
func NewQueuedSink(d *dispatcher.Dispatcher, logger *slog.Logger) *QueuedSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueuedSink{d: d, logger: logger}
}

// RecordTransition enqueues e. A full or closed queue is logged.
func (s *QueuedSink) RecordTransition(ctx context.Context, e proximity.Event, pos core.Position) {
	ev := dispatcher.Event{
		Command:   CmdTransition,
		Args:      transitionArgs(e, pos),
		Timestamp: time.Now(),
	}
	if _, err := s.d.Dispatch(ctx, ev); err != nil {
		s.logger.Warn("Transition not recorded", "marker", e.MarkerID, "kind", e.Kind, "error", err)
	}
}

func transitionArgs(e proximity.Event, pos core.Position) []string {
	args := []string{
		e.Kind.String(),
		e.MarkerID,
		strconv.FormatFloat(e.DistanceKm, 'f', -1, 64),
		strconv.FormatFloat(pos.Latitude, 'f', -1, 64),
		strconv.FormatFloat(pos.Longitude, 'f', -1, 64),
		pos.Time.UTC().Format(time.RFC3339Nano),
	}
	if e.Removed {
		args = append(args, "removed")
	}
	return args
}

func parseTransition(args []string) (proximity.Event, core.Position, error) {
	if n := len(args); n < 6 || n > 7 {
		return proximity.Event{}, core.Position{}, fmt.Errorf("%s expects 6 or 7 arguments, got %d", CmdTransition, n)
	}

	var e proximity.Event
	switch args[0] {
	case proximity.Enter.String():
		e.Kind = proximity.Enter
	case proximity.Exit.String():
		e.Kind = proximity.Exit
	default:
		return proximity.Event{}, core.Position{}, fmt.Errorf("unknown transition kind %q", args[0])
	}
	e.MarkerID = args[1]
	e.Removed = len(args) == 7 && args[6] == "removed"

	var err error
	if e.DistanceKm, err = strconv.ParseFloat(args[2], 64); err != nil {
		return proximity.Event{}, core.Position{}, fmt.Errorf("invalid distance %q: %w", args[2], err)
	}
	lat, lon, err := parseLatLon(args[3], args[4])
	if err != nil {
		return proximity.Event{}, core.Position{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, args[5])
	if err != nil {
		return proximity.Event{}, core.Position{}, fmt.Errorf("invalid time %q: %w", args[5], err)
	}
	return e, core.Position{Latitude: lat, Longitude: lon, Time: ts}, nil
}

// :TRANSITION: kind markerID distanceKm lat lon time [removed]
func (m *Manager) handleTransition(ctx context.Context, e dispatcher.Event) (any, error) {
	te, pos, err := parseTransition(e.Args)
	if err != nil {
		return nil, err
	}
	m.deps.Recorder.RecordTransition(ctx, te, pos)
	return nil, nil
}
