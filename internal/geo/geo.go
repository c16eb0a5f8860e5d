package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/geomemo/geomemo/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Markers are stored as plain WGS84 degrees (EPSG:4326). Points in other
// reference systems are only produced on export.

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ValidLatLon reports whether lat/lon are finite and within WGS84 bounds.
func ValidLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// HaversineKm returns the great-circle distance between two points in kilometres.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// DistanceKm is HaversineKm between a position and a marker.
func DistanceKm(pos core.Position, m core.Marker) float64 {
	return HaversineKm(pos.Latitude, pos.Longitude, m.Latitude, m.Longitude)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// PositionFromString parses a "lat,lon" or "lat,lon,timestamp" string into a
// core.Position. The timestamp must be RFC3339.
func PositionFromString(s string) (core.Position, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.Position{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.Position{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.Position{}, ErrInvalidCoordinates
	}
	if !ValidLatLon(lat, lon) {
		return core.Position{}, ErrInvalidCoordinates
	}
	pos := core.Position{Latitude: lat, Longitude: lon}
	if len(parts) == 3 {
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[2]))
		if err != nil {
			return core.Position{}, ErrInvalidCoordinates
		}
		pos.Time = ts.UTC()
	}
	return pos, nil
}

// Point4326 creates a WGS84 point. X is longitude, Y is latitude.
func Point4326(latitude, longitude float64) (geom.Point, error) {
	if !ValidLatLon(latitude, longitude) {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: longitude, Y: latitude},
			Type: geom.DimXY,
		},
	)
}

// Coords3857From4326 creates a web mercator point from a longitude and latitude
func Coords3857From4326(
	longitude float64,
	latitude float64,
) (
	point geom.Point,
	err error,
) {
	if !ValidLatLon(latitude, longitude) {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	var x, y float64
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(longitude, latitude, 0)
	point, err = geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
		},
	)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), fmt.Errorf("invalid web mercator point: %w", err)
	}
	return point, nil
}
