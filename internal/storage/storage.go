// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/geomemo/geomemo/pkg/core"
)

// Backend is the interface all storage implementations must satisfy.
//
// Errors are classified at this boundary: constraint failures wrap
// core.ErrConstraintViolation, everything else wraps core.ErrStore.
// Deleting an ID that does not exist is not an error.
type Backend interface {
	// Lifecycle. Init creates the schema and is safe to call on every start.
	Init(ctx context.Context) error
	Close() error

	// LoadMarkers returns every marker with its images attached.
	LoadMarkers(ctx context.Context) ([]core.Marker, error)

	AddMarker(ctx context.Context, m core.Marker) error
	AddImage(ctx context.Context, img core.Image) error
	RemoveImage(ctx context.Context, imageID string) error
	// RemoveMarker deletes the marker and all of its images.
	RemoveMarker(ctx context.Context, markerID string) error
}

// Backupable is an optional interface for backends that can write a
// standalone snapshot of their data to a file.
type Backupable interface {
	Backup(ctx context.Context, path string) error
}
