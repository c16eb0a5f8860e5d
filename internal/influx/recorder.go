package influx

import (
	"context"
	"time"

	"github.com/geomemo/geomemo/internal/proximity"
	"github.com/geomemo/geomemo/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
)

// Measurement is the name every transition point is written under.
const Measurement = "proximity_transition"

// PointWriter accepts points for delivery.
type PointWriter interface {
	WritePoint(ctx context.Context, point *influxdb2_write.Point) error
}

// Recorder is a proximity.Sink that turns transitions into points.
type Recorder struct {
	w      PointWriter
	logger zerolog.Logger
	now    func() time.Time
}

var _ proximity.Sink = (*Recorder)(nil)

// NewRecorder creates a recorder writing to w.
func NewRecorder(w PointWriter, logger zerolog.Logger) *Recorder {
	return &Recorder{w: w, logger: logger, now: time.Now}
}

// RecordTransition writes one point. Write failures are logged, never
// returned, so a broken recorder cannot stall the watcher.
func (r *Recorder) RecordTransition(ctx context.Context, e proximity.Event, pos core.Position) {
	if err := r.w.WritePoint(ctx, TransitionPoint(e, pos, r.now())); err != nil {
		r.logger.Error().Err(err).Str("marker", e.MarkerID).Msg("Error recording transition")
	}
}

// TransitionPoint builds the point for e. The sample time is used when
// present, otherwise fallback.
func TransitionPoint(e proximity.Event, pos core.Position, fallback time.Time) *influxdb2_write.Point {
	ts := pos.Time
	if ts.IsZero() {
		ts = fallback
	}
	p := influxdb2_write.NewPointWithMeasurement(Measurement).
		AddTag("kind", e.Kind.String()).
		AddTag("marker", e.MarkerID).
		AddField("distance_m", e.DistanceKm*1000).
		AddField("lat", pos.Latitude).
		AddField("lon", pos.Longitude).
		SetTime(ts.UTC())
	if e.Removed {
		p.AddTag("removed", "true")
	}
	return p
}
