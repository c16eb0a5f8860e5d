// pkg/core/marker.go
package core

import "time"

// Marker is a user-dropped map pin. Coordinates are WGS84 degrees and never
// change after creation.
type Marker struct {
	ID        string    `json:"id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"createdAt"`
	Images    []Image   `json:"images"`
}

// Image is a photo reference attached to a marker. URI is stored as given.
type Image struct {
	ID        string    `json:"id"`
	MarkerID  string    `json:"markerId"`
	URI       string    `json:"uri"`
	CreatedAt time.Time `json:"createdAt"`
}

// Position is a single sample delivered by a location stream.
// Time is zero when the source does not provide timestamps.
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Time      time.Time `json:"time,omitempty"`
}

// Clone returns a deep copy of the marker, including its image slice.
func (m Marker) Clone() Marker {
	out := m
	if m.Images != nil {
		out.Images = make([]Image, len(m.Images))
		copy(out.Images, m.Images)
	}
	return out
}

// CloneMarkers deep-copies a marker list.
func CloneMarkers(markers []Marker) []Marker {
	out := make([]Marker, len(markers))
	for i, m := range markers {
		out[i] = m.Clone()
	}
	return out
}
