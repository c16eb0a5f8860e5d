package convert

import (
	"github.com/geomemo/geomemo/internal/model"
	"github.com/geomemo/geomemo/pkg/core"
)

// MarkerToGorm converts a core.Marker to a GORM Marker. Images and the
// creation time are not carried; the store owns both.
func MarkerToGorm(m core.Marker) model.Marker {
	return model.Marker{
		ID:        m.ID,
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
	}
}

// ImageToGorm converts a core.Image to a GORM MarkerImage.
func ImageToGorm(img core.Image) model.MarkerImage {
	return model.MarkerImage{
		ID:       img.ID,
		MarkerID: img.MarkerID,
		URI:      img.URI,
	}
}
