// Package proximity tracks which markers the user is near and turns
// FAR/NEAR transitions into notification events.
package proximity

import (
	"sort"

	"github.com/geomemo/geomemo/internal/geo"
	"github.com/geomemo/geomemo/pkg/core"
)

// DefaultThresholdKm is the enter/exit radius: 100 m.
const DefaultThresholdKm = 0.1

// EventKind is the direction of a transition.
type EventKind int

const (
	// Enter is a FAR -> NEAR transition: issue a notification.
	Enter EventKind = iota + 1
	// Exit is a NEAR -> FAR transition: cancel the notification.
	Exit
)

func (k EventKind) String() string {
	switch k {
	case Enter:
		return "enter"
	case Exit:
		return "exit"
	default:
		return "unknown"
	}
}

// Event is emitted by Evaluate for each transition.
type Event struct {
	Kind     EventKind
	MarkerID string
	// DistanceKm is the distance at the sample. It is zero for exits of
	// markers that no longer exist.
	DistanceKm float64
	// Handle is the recorded notification handle on Exit. Evaluate leaves
	// it empty on Enter; Watcher.Observe fills in the issued one.
	Handle string
	// Removed marks an Exit caused by the marker disappearing.
	Removed bool
}

// State is the set of near markers and their notification handles. It is
// immutable: every change returns a new State.
type State struct {
	near map[string]string
}

// NewState returns an empty state.
func NewState() State {
	return State{}
}

// IsNear reports whether the marker is currently considered near.
func (s State) IsNear(markerID string) bool {
	_, ok := s.near[markerID]
	return ok
}

// Handle returns the recorded handle for a near marker.
func (s State) Handle(markerID string) (string, bool) {
	h, ok := s.near[markerID]
	return h, ok
}

// Near returns the near marker IDs in sorted order.
func (s State) Near() []string {
	ids := make([]string, 0, len(s.near))
	for id := range s.near {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of near markers.
func (s State) Len() int {
	return len(s.near)
}

// WithHandle records the notification handle for a near marker. Markers
// that are not near are left alone.
func (s State) WithHandle(markerID, handle string) State {
	if !s.IsNear(markerID) {
		return s
	}
	next := s.clone()
	next.near[markerID] = handle
	return next
}

func (s State) clone() State {
	next := State{near: make(map[string]string, len(s.near))}
	for id, h := range s.near {
		next.near[id] = h
	}
	return next
}

// Evaluate is the transition function. Given the current state, one
// position sample and the full marker list, it returns the next state and
// the events to act on. The input state is never modified.
//
// A nil position or an empty marker list changes nothing. A marker is near
// while its distance is strictly below thresholdKm. Near markers missing
// from a non-empty list exit after all other events, in ID order.
//
// Deleting the last marker therefore produces no exit: with an empty list the
// state is returned as is, and the notification of that marker stays until
// a later evaluation sees a non-empty list without it.
func Evaluate(state State, pos *core.Position, markers []core.Marker, thresholdKm float64) (State, []Event) {
	if pos == nil || len(markers) == 0 {
		return state, nil
	}

	next := state.clone()
	var events []Event
	seen := make(map[string]struct{}, len(markers))

	for _, m := range markers {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}

		d := geo.DistanceKm(*pos, m)
		handle, near := next.near[m.ID]
		switch {
		case d < thresholdKm && !near:
			next.near[m.ID] = ""
			events = append(events, Event{Kind: Enter, MarkerID: m.ID, DistanceKm: d})
		case d >= thresholdKm && near:
			delete(next.near, m.ID)
			events = append(events, Event{Kind: Exit, MarkerID: m.ID, DistanceKm: d, Handle: handle})
		}
	}

	var stale []string
	for id := range next.near {
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	for _, id := range stale {
		events = append(events, Event{Kind: Exit, MarkerID: id, Handle: next.near[id], Removed: true})
		delete(next.near, id)
	}

	return next, events
}
