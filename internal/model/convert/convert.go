// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"github.com/geomemo/geomemo/internal/model"
	"github.com/geomemo/geomemo/pkg/core"
)

// MarkerToCore converts a GORM Marker to a core.Marker without images.
func MarkerToCore(m model.Marker) core.Marker {
	return core.Marker{
		ID:        m.ID,
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		CreatedAt: m.CreatedAt.UTC(),
		Images:    []core.Image{},
	}
}

// ImageToCore converts a GORM MarkerImage to a core.Image.
func ImageToCore(img model.MarkerImage) core.Image {
	return core.Image{
		ID:        img.ID,
		MarkerID:  img.MarkerID,
		URI:       img.URI,
		CreatedAt: img.CreatedAt.UTC(),
	}
}

// JoinImages converts markers and attaches each image to its owning marker.
// Marker order is preserved and images keep their relative order. Images
// whose marker is absent are dropped.
func JoinImages(markers []model.Marker, images []model.MarkerImage) []core.Marker {
	out := make([]core.Marker, len(markers))
	pos := make(map[string]int, len(markers))
	for i, m := range markers {
		out[i] = MarkerToCore(m)
		pos[m.ID] = i
	}
	for _, img := range images {
		i, ok := pos[img.MarkerID]
		if !ok {
			continue
		}
		out[i].Images = append(out[i].Images, ImageToCore(img))
	}
	return out
}
