// internal/storage/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/geomemo/geomemo/internal/config"
	"github.com/geomemo/geomemo/pkg/core"
)

// MarkerRecord groups a marker with its images
type MarkerRecord struct {
	Marker core.Marker
	Images []core.Image
}

// Backend keeps markers in process memory with the same constraint and
// cascade rules as the SQL store. With a snapshot path configured the data
// is loaded on Init and written back on Close.
type Backend struct {
	cfg config.MemoryConfig

	order      []string                 // marker IDs in insertion order
	markers    map[string]*MarkerRecord // keyed by marker ID
	imageOwner map[string]string        // image ID -> marker ID

	now func() time.Time
	mu  sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:        cfg,
		markers:    make(map[string]*MarkerRecord),
		imageOwner: make(map[string]string),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Init loads the snapshot file when one is configured and present. Calling
// it again does not discard data added since.
func (b *Backend) Init(ctx context.Context) error {
	if b.cfg.SnapshotPath == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.markers) > 0 {
		return nil
	}
	snap, err := readSnapshot(b.cfg.SnapshotPath)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStore, err)
	}
	for _, m := range snap.Markers {
		b.restore(m)
	}
	return nil
}

// Close writes the snapshot file when one is configured.
func (b *Backend) Close() error {
	if b.cfg.SnapshotPath == "" {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := writeSnapshot(b.cfg.SnapshotPath, b.cfg.CompressOutput, b.snapshot()); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStore, err)
	}
	return nil
}

// LoadMarkers returns deep copies of all markers in insertion order.
func (b *Backend) LoadMarkers(ctx context.Context) ([]core.Marker, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStore, err)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot().Markers, nil
}

// AddMarker registers a new marker. Duplicate IDs are rejected.
func (b *Backend) AddMarker(ctx context.Context, m core.Marker) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStore, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.markers[m.ID]; ok {
		return fmt.Errorf("%w: marker %q already exists", core.ErrConstraintViolation, m.ID)
	}
	b.markers[m.ID] = &MarkerRecord{
		Marker: core.Marker{
			ID:        m.ID,
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			CreatedAt: b.now(),
		},
		Images: make([]core.Image, 0),
	}
	b.order = append(b.order, m.ID)
	return nil
}

// AddImage attaches an image to an existing marker.
func (b *Backend) AddImage(ctx context.Context, img core.Image) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStore, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.markers[img.MarkerID]
	if !ok {
		return fmt.Errorf("%w: marker %q does not exist", core.ErrConstraintViolation, img.MarkerID)
	}
	if _, ok := b.imageOwner[img.ID]; ok {
		return fmt.Errorf("%w: image %q already exists", core.ErrConstraintViolation, img.ID)
	}
	record.Images = append(record.Images, core.Image{
		ID:        img.ID,
		MarkerID:  img.MarkerID,
		URI:       img.URI,
		CreatedAt: b.now(),
	})
	b.imageOwner[img.ID] = img.MarkerID
	return nil
}

// RemoveImage deletes an image. Unknown IDs are ignored.
func (b *Backend) RemoveImage(ctx context.Context, imageID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStore, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	owner, ok := b.imageOwner[imageID]
	if !ok {
		return nil
	}
	delete(b.imageOwner, imageID)
	record := b.markers[owner]
	for i, img := range record.Images {
		if img.ID == imageID {
			record.Images = append(record.Images[:i], record.Images[i+1:]...)
			break
		}
	}
	return nil
}

// RemoveMarker deletes a marker and cascades to its images.
func (b *Backend) RemoveMarker(ctx context.Context, markerID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStore, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.markers[markerID]
	if !ok {
		return nil
	}
	for _, img := range record.Images {
		delete(b.imageOwner, img.ID)
	}
	delete(b.markers, markerID)
	for i, id := range b.order {
		if id == markerID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}

// Backup writes the current data as a JSON snapshot to path.
func (b *Backend) Backup(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := writeSnapshot(path, b.cfg.CompressOutput, b.snapshot()); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStore, err)
	}
	return nil
}

// snapshot must be called with the lock held.
func (b *Backend) snapshot() Snapshot {
	out := make([]core.Marker, 0, len(b.order))
	for _, id := range b.order {
		record := b.markers[id]
		m := record.Marker
		m.Images = make([]core.Image, len(record.Images))
		copy(m.Images, record.Images)
		out = append(out, m)
	}
	return Snapshot{Markers: out}
}

// restore must be called with the lock held. Entries that would violate a
// constraint are skipped.
func (b *Backend) restore(m core.Marker) {
	if _, ok := b.markers[m.ID]; ok {
		return
	}
	record := &MarkerRecord{
		Marker: core.Marker{ID: m.ID, Latitude: m.Latitude, Longitude: m.Longitude, CreatedAt: m.CreatedAt},
		Images: make([]core.Image, 0, len(m.Images)),
	}
	for _, img := range m.Images {
		if _, ok := b.imageOwner[img.ID]; ok {
			continue
		}
		img.MarkerID = m.ID
		record.Images = append(record.Images, img)
		b.imageOwner[img.ID] = m.ID
	}
	b.markers[m.ID] = record
	b.order = append(b.order, m.ID)
}
