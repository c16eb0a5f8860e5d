// Package sqlitestorage implements the storage.Backend interface on top of a
// SQLite database through GORM.
//
// A file path gives a durable store. An in-memory database can optionally be
// dumped to disk on an interval via VACUUM INTO.
package sqlitestorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geomemo/geomemo/internal/database"
	"github.com/geomemo/geomemo/internal/model"
	"github.com/geomemo/geomemo/internal/model/convert"
	"github.com/geomemo/geomemo/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path         string        // database file, or database.MemoryPath
	DumpInterval time.Duration // periodic VACUUM INTO for in-memory databases
	DumpPath     string
}

// Backend stores markers and images in SQLite.
type Backend struct {
	cfg      Config
	db       *database.Manager
	log      *slog.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new SQLite storage backend. The connection is opened in Init.
func New(cfg Config, dbLog zerolog.Logger, log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		cfg: cfg,
		db:  database.NewManager(dbLog),
		log: log,
	}
}

// Init opens the database, creates the schema and starts the dump goroutine.
func (b *Backend) Init(ctx context.Context) error {
	if b.db.DB == nil {
		if err := b.db.Connect(b.cfg.Path); err != nil {
			return fmt.Errorf("%w: %w", core.ErrStore, err)
		}
	}
	if err := b.db.Setup(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStore, err)
	}

	if b.stopChan == nil && b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.stopChan = make(chan struct{})
		b.done = make(chan struct{})
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, writes a final dump if configured and
// closes the connection.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		<-b.done
		b.stopChan = nil
		if err := b.db.DumpToDisk(b.cfg.DumpPath); err != nil {
			b.log.Error("Final dump failed", "error", err)
		}
	}
	return b.db.Close()
}

// LoadMarkers reads all markers in insertion order, then all of their images
// in one batched IN query, and joins them in memory.
func (b *Backend) LoadMarkers(ctx context.Context) ([]core.Marker, error) {
	db := b.db.DB.WithContext(ctx)

	var markers []model.Marker
	if err := db.Order("rowid").Find(&markers).Error; err != nil {
		return nil, classify(err)
	}
	if len(markers) == 0 {
		return []core.Marker{}, nil
	}

	ids := make([]string, len(markers))
	for i, m := range markers {
		ids[i] = m.ID
	}

	var images []model.MarkerImage
	if err := db.Where("marker_id IN ?", ids).Order("rowid").Find(&images).Error; err != nil {
		return nil, classify(err)
	}

	return convert.JoinImages(markers, images), nil
}

// AddMarker inserts a marker. Its creation time comes from the column default.
func (b *Backend) AddMarker(ctx context.Context, m core.Marker) error {
	row := convert.MarkerToGorm(m)
	if err := b.db.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return classify(err)
	}
	return nil
}

// AddImage inserts an image. The owning marker must exist.
func (b *Backend) AddImage(ctx context.Context, img core.Image) error {
	row := convert.ImageToGorm(img)
	if err := b.db.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return classify(err)
	}
	return nil
}

// RemoveImage deletes one image by ID.
func (b *Backend) RemoveImage(ctx context.Context, imageID string) error {
	err := b.db.DB.WithContext(ctx).Where("id = ?", imageID).Delete(&model.MarkerImage{}).Error
	if err != nil {
		return classify(err)
	}
	return nil
}

// RemoveMarker deletes a marker; the foreign key cascades to its images.
func (b *Backend) RemoveMarker(ctx context.Context, markerID string) error {
	err := b.db.DB.WithContext(ctx).Where("id = ?", markerID).Delete(&model.Marker{}).Error
	if err != nil {
		return classify(err)
	}
	return nil
}

// Backup writes a point-in-time snapshot of the database to path.
func (b *Backend) Backup(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.db.DumpToDisk(path); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStore, err)
	}
	return nil
}

// classify maps driver errors onto the core error kinds.
func classify(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		strings.Contains(err.Error(), "constraint failed"):
		return fmt.Errorf("%w: %w", core.ErrConstraintViolation, err)
	default:
		return fmt.Errorf("%w: %w", core.ErrStore, err)
	}
}

// dumpLoop periodically dumps the database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.db.DumpToDisk(b.cfg.DumpPath); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			} else {
				b.log.Debug("Dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
