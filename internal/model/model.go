package model

import (
	"time"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// Tables are created with explicit DDL in internal/database, not AutoMigrate:
// a table rebuild on sqlite would cascade-delete marker images.

// Marker is a row of the markers table.
type Marker struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id"`
	Latitude  float64   `json:"latitude" gorm:"column:latitude;not null"`
	Longitude float64   `json:"longitude" gorm:"column:longitude;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"->;column:created_at"` // set by the store default
}

func (*Marker) TableName() string {
	return "markers"
}

// MarkerImage is a row of the marker_images table. Deleting the owning
// marker removes the row via ON DELETE CASCADE.
type MarkerImage struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id"`
	MarkerID  string    `json:"markerId" gorm:"column:marker_id;not null;index:idx_marker_images_marker_id"`
	URI       string    `json:"uri" gorm:"column:uri;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"->;column:created_at"`
}

func (*MarkerImage) TableName() string {
	return "marker_images"
}
