// Package worker binds dispatcher commands to the marker service and the
// proximity watcher.
package worker

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/geomemo/geomemo/internal/markers"
	"github.com/geomemo/geomemo/internal/proximity"
)

// DefaultNearRadiusKm is used by :MARKERS:NEAR: when no radius is given.
const DefaultNearRadiusKm = 1.0

// ErrNoWatcher is returned for position samples when no watcher is configured.
var ErrNoWatcher = errors.New("proximity watcher not configured")

// Commands understood by the shell.
const (
	CmdMarkerAdd    = ":MARKER:ADD:"
	CmdMarkerRemove = ":MARKER:REMOVE:"
	CmdImageAdd     = ":IMAGE:ADD:"
	CmdImageRemove  = ":IMAGE:REMOVE:"
	CmdMarkersList  = ":MARKERS:LIST:"
	CmdMarkersNear  = ":MARKERS:NEAR:"
	CmdPosition     = ":POSITION:"
)

var aliases = map[string]string{
	"ADD":   CmdMarkerAdd,
	"RM":    CmdMarkerRemove,
	"IMG":   CmdImageAdd,
	"RMIMG": CmdImageRemove,
	"LIST":  CmdMarkersList,
	"NEAR":  CmdMarkersNear,
	"POS":   CmdPosition,
}

// Resolve maps a short alias to its command. Unknown names are returned
// upper-cased and unchanged otherwise.
func Resolve(command string) string {
	c := strings.ToUpper(command)
	if full, ok := aliases[c]; ok {
		return full
	}
	return c
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Markers *markers.Service
	Watcher *proximity.Watcher
	// Recorder receives queued transitions. CmdTransition is only
	// registered when it is set.
	Recorder proximity.Sink
	Logger   *slog.Logger
}

// Manager owns the command handlers
type Manager struct {
	deps Dependencies
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{deps: deps}
}
