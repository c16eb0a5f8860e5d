package geo

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/geomemo/geomemo/pkg/core"
)

const (
	tolerance   = 1e-9
	minChildren = 2
	maxChildren = 16
	dimensions  = 2
)

type spatialMarker struct {
	marker core.Marker
	rect   rtreego.Rect
}

func (s *spatialMarker) Bounds() rtreego.Rect {
	return s.rect
}

// Hit is a marker returned by a radius search with its distance.
type Hit struct {
	Marker     core.Marker
	DistanceKm float64
}

// MarkerIndex is an R-tree over marker coordinates (lat, lon).
type MarkerIndex struct {
	mu   sync.RWMutex
	tree *rtreego.Rtree
}

// NewMarkerIndex bulk-loads an index from the given markers.
func NewMarkerIndex(markers []core.Marker) *MarkerIndex {
	objs := make([]rtreego.Spatial, 0, len(markers))
	for _, m := range markers {
		objs = append(objs, newSpatialMarker(m))
	}
	return &MarkerIndex{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren, objs...),
	}
}

func newSpatialMarker(m core.Marker) *spatialMarker {
	p := rtreego.Point{m.Latitude, m.Longitude}
	return &spatialMarker{marker: m, rect: p.ToRect(tolerance)}
}

// Len returns the number of indexed markers.
func (idx *MarkerIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Size()
}

// SearchRadius returns markers within radiusKm of the centre, nearest first.
// The bounding box widens in longitude by 1/cos(lat) so that the haversine
// filter never misses candidates away from the equator, and is split in two
// when it crosses the antimeridian.
func (idx *MarkerIndex) SearchRadius(lat, lon, radiusKm float64) ([]Hit, error) {
	if !ValidLatLon(lat, lon) {
		return nil, ErrInvalidCoordinates
	}
	if radiusKm <= 0 || math.IsNaN(radiusKm) {
		return nil, fmt.Errorf("invalid radius %v", radiusKm)
	}

	dLat := (radiusKm / EarthRadiusKm) * (180 / math.Pi)
	dLon := 360.0
	if c := math.Cos(toRadians(lat)); c > 1e-6 {
		dLon = math.Min(dLat/c, 360)
	}

	var results []rtreego.Spatial
	idx.mu.RLock()
	for _, span := range lonSpans(lon, dLon) {
		bounds, err := rtreego.NewRect(
			rtreego.Point{lat - dLat, span[0]},
			[]float64{2 * dLat, span[1] - span[0]},
		)
		if err != nil {
			idx.mu.RUnlock()
			return nil, fmt.Errorf("invalid radius search: %w", err)
		}
		results = append(results, idx.tree.SearchIntersect(bounds)...)
	}
	idx.mu.RUnlock()

	seen := make(map[*spatialMarker]bool, len(results))
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		item, ok := r.(*spatialMarker)
		if !ok || seen[item] {
			continue
		}
		seen[item] = true
		d := HaversineKm(lat, lon, item.marker.Latitude, item.marker.Longitude)
		if d <= radiusKm {
			hits = append(hits, Hit{Marker: item.marker, DistanceKm: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].DistanceKm == hits[j].DistanceKm {
			return hits[i].Marker.ID < hits[j].Marker.ID
		}
		return hits[i].DistanceKm < hits[j].DistanceKm
	})
	return hits, nil
}

// lonSpans returns the [min, max] longitude ranges covering lon±dLon,
// wrapped into [-180, 180].
func lonSpans(lon, dLon float64) [][2]float64 {
	lo, hi := lon-dLon, lon+dLon
	switch {
	case dLon >= 180:
		return [][2]float64{{-180, 180}}
	case lo < -180:
		return [][2]float64{{-180, hi}, {lo + 360, 180}}
	case hi > 180:
		return [][2]float64{{lo, 180}, {-180, hi - 360}}
	default:
		return [][2]float64{{lo, hi}}
	}
}
