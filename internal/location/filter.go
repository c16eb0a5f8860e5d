package location

import (
	"github.com/geomemo/geomemo/internal/geo"
	"github.com/geomemo/geomemo/pkg/core"
)

// filter drops samples that are too close in time or space to the last
// delivered one. Both limits must be met for a sample to pass.
type filter struct {
	opts Options
	last *core.Position
}

func (f *filter) accept(pos core.Position) bool {
	if f.last == nil {
		f.last = &pos
		return true
	}
	if f.opts.MinDistanceM > 0 {
		d := geo.HaversineKm(f.last.Latitude, f.last.Longitude, pos.Latitude, pos.Longitude) * 1000
		if d < f.opts.MinDistanceM {
			return false
		}
	}
	if f.opts.MinInterval > 0 && !pos.Time.IsZero() && !f.last.Time.IsZero() {
		if pos.Time.Sub(f.last.Time) < f.opts.MinInterval {
			return false
		}
	}
	f.last = &pos
	return true
}
