// Package markers owns the marker projection and is the only path through
// which markers and images are mutated. Every successful write is followed
// by a full reload from the store.
package markers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/geomemo/geomemo/internal/cache"
	"github.com/geomemo/geomemo/internal/geo"
	"github.com/geomemo/geomemo/internal/storage"
	"github.com/geomemo/geomemo/pkg/core"
)

// Operation names reported in errors and logs.
const (
	OpInitialize   = "initialize store"
	OpLoad         = "load markers"
	OpAddMarker    = "add marker"
	OpAddImage     = "add image"
	OpRemoveImage  = "remove image"
	OpRemoveMarker = "remove marker"
)

// ErrEmptyID is returned when a caller passes an empty marker or image ID.
var ErrEmptyID = errors.New("id must not be empty")

// Dependencies holds all dependencies for the marker service
type Dependencies struct {
	Backend storage.Backend
	Cache   *cache.MarkerCache
	Logger  *slog.Logger
	IDs     *IDGenerator
}

// Service is the persistence layer facade.
type Service struct {
	deps Dependencies

	// loadMu orders store reads with the projection update, so a slow
	// reload cannot overwrite the result of a later one.
	loadMu sync.Mutex

	mu      sync.Mutex
	loading bool
	lastErr error
}

// NewService creates a marker service. Missing optional dependencies get
// defaults.
func NewService(deps Dependencies) *Service {
	if deps.Cache == nil {
		deps.Cache = cache.NewMarkerCache()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.IDs == nil {
		deps.IDs = NewIDGenerator()
	}
	return &Service{deps: deps}
}

// Initialize creates the schema if needed and performs the first load.
func (s *Service) Initialize(ctx context.Context) error {
	s.setLoading(true)
	if err := s.deps.Backend.Init(ctx); err != nil {
		return s.fail(OpInitialize, err)
	}
	_, err := s.LoadMarkers(ctx)
	return err
}

// LoadMarkers refreshes the projection from the store. On failure the
// previous projection is kept and the error is recorded.
func (s *Service) LoadMarkers(ctx context.Context) ([]core.Marker, error) {
	s.setLoading(true)

	s.loadMu.Lock()
	markers, err := s.deps.Backend.LoadMarkers(ctx)
	if err != nil {
		s.loadMu.Unlock()
		return nil, s.fail(OpLoad, err)
	}
	s.deps.Cache.Replace(markers)
	s.loadMu.Unlock()

	s.mu.Lock()
	s.loading = false
	s.lastErr = nil
	s.mu.Unlock()

	s.deps.Logger.Debug("Markers loaded", "count", len(markers))
	return s.deps.Cache.List(), nil
}

// AddMarker stores a new marker and reloads.
func (s *Service) AddMarker(ctx context.Context, id string, lat, lon float64) error {
	if id == "" {
		return s.fail(OpAddMarker, fmt.Errorf("%w: marker %w", core.ErrConstraintViolation, ErrEmptyID))
	}
	if !geo.ValidLatLon(lat, lon) {
		return s.fail(OpAddMarker, fmt.Errorf("%w: %w", core.ErrConstraintViolation, geo.ErrInvalidCoordinates))
	}
	return s.mutate(ctx, OpAddMarker, func() error {
		return s.deps.Backend.AddMarker(ctx, core.Marker{ID: id, Latitude: lat, Longitude: lon})
	})
}

// AddImageToMarker attaches an image URI to an existing marker and reloads.
func (s *Service) AddImageToMarker(ctx context.Context, markerID, imageID, uri string) error {
	if markerID == "" || imageID == "" {
		return s.fail(OpAddImage, fmt.Errorf("%w: %w", core.ErrConstraintViolation, ErrEmptyID))
	}
	return s.mutate(ctx, OpAddImage, func() error {
		return s.deps.Backend.AddImage(ctx, core.Image{ID: imageID, MarkerID: markerID, URI: uri})
	})
}

// RemoveImageFromMarker deletes an image and reloads. Unknown IDs are not
// an error.
func (s *Service) RemoveImageFromMarker(ctx context.Context, imageID string) error {
	return s.mutate(ctx, OpRemoveImage, func() error {
		return s.deps.Backend.RemoveImage(ctx, imageID)
	})
}

// RemoveMarker deletes a marker together with its images and reloads.
// Unknown IDs are not an error.
func (s *Service) RemoveMarker(ctx context.Context, markerID string) error {
	return s.mutate(ctx, OpRemoveMarker, func() error {
		return s.deps.Backend.RemoveMarker(ctx, markerID)
	})
}

func (s *Service) mutate(ctx context.Context, op string, write func() error) error {
	s.setLoading(true)
	if err := write(); err != nil {
		return s.fail(op, err)
	}
	s.deps.Logger.Debug("Store updated", "op", op)
	_, err := s.LoadMarkers(ctx)
	return err
}

// fail records err as the last error and clears the loading flag.
func (s *Service) fail(op string, err error) error {
	opErr := core.NewOpError(op, err)

	s.mu.Lock()
	s.loading = false
	s.lastErr = opErr
	s.mu.Unlock()

	s.deps.Logger.Error("Marker operation failed", "op", op, "error", err)
	return opErr
}

func (s *Service) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// Markers returns a snapshot of the current projection.
func (s *Service) Markers() []core.Marker {
	return s.deps.Cache.List()
}

// Marker looks up one marker in the projection.
func (s *Service) Marker(id string) (core.Marker, bool) {
	return s.deps.Cache.Get(id)
}

// Near returns projected markers within radiusKm of the point, nearest first.
func (s *Service) Near(lat, lon, radiusKm float64) ([]geo.Hit, error) {
	return s.deps.Cache.Near(lat, lon, radiusKm)
}

// Loading reports whether an operation is in flight.
func (s *Service) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError returns the error of the most recent failed operation, or nil
// once a later load succeeded.
func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// NewMarkerID returns a fresh time-based marker ID.
func (s *Service) NewMarkerID() string {
	return s.deps.IDs.Next()
}

// NewImageID returns a fresh time-based image ID.
func (s *Service) NewImageID() string {
	return s.deps.IDs.Next()
}

// Backup writes a snapshot of the store to path when the backend supports it.
func (s *Service) Backup(ctx context.Context, path string) error {
	b, ok := s.deps.Backend.(storage.Backupable)
	if !ok {
		return fmt.Errorf("backend does not support backups")
	}
	return b.Backup(ctx, path)
}
