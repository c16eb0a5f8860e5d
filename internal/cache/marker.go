package cache

import (
	"sync"

	"github.com/geomemo/geomemo/internal/geo"
	"github.com/geomemo/geomemo/pkg/core"
)

// MarkerCache is the in-memory projection of the marker store. It is only
// ever replaced wholesale from a full reload, never patched.
type MarkerCache struct {
	mu      sync.RWMutex
	markers []core.Marker
	byID    map[string]int
	index   *geo.MarkerIndex
}

// NewMarkerCache creates a new, empty MarkerCache
func NewMarkerCache() *MarkerCache {
	return &MarkerCache{
		markers: []core.Marker{},
		byID:    make(map[string]int),
		index:   geo.NewMarkerIndex(nil),
	}
}

// Replace swaps in a freshly loaded marker list and rebuilds the lookup
// tables and the spatial index.
func (c *MarkerCache) Replace(markers []core.Marker) {
	list := core.CloneMarkers(markers)
	byID := make(map[string]int, len(list))
	for i, m := range list {
		byID[m.ID] = i
	}
	index := geo.NewMarkerIndex(list)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers = list
	c.byID = byID
	c.index = index
}

// Get retrieves a copy of a marker by ID
func (c *MarkerCache) Get(id string) (core.Marker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return core.Marker{}, false
	}
	return c.markers[i].Clone(), true
}

// List returns a copy of all markers in store order
func (c *MarkerCache) List() []core.Marker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return core.CloneMarkers(c.markers)
}

// Len returns the number of cached markers
func (c *MarkerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.markers)
}

// Near returns cached markers within radiusKm of the point, nearest first.
func (c *MarkerCache) Near(lat, lon, radiusKm float64) ([]geo.Hit, error) {
	c.mu.RLock()
	index := c.index
	c.mu.RUnlock()
	return index.SearchRadius(lat, lon, radiusKm)
}
