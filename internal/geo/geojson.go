package geo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/geomemo/geomemo/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Supported export reference systems.
const (
	SRID4326 = 4326
	SRID3857 = 3857
)

// FeatureCollection builds a GeoJSON feature collection of markers in the
// requested reference system. Each feature carries the marker ID and its
// image URIs as properties.
func FeatureCollection(markers []core.Marker, srid int) (geom.GeoJSONFeatureCollection, error) {
	fc := make(geom.GeoJSONFeatureCollection, 0, len(markers))
	for _, m := range markers {
		var (
			pt  geom.Point
			err error
		)
		switch srid {
		case SRID4326:
			pt, err = Point4326(m.Latitude, m.Longitude)
		case SRID3857:
			pt, err = Coords3857From4326(m.Longitude, m.Latitude)
		default:
			return nil, fmt.Errorf("unsupported srid %d", srid)
		}
		if err != nil {
			return nil, fmt.Errorf("marker %s: %w", m.ID, err)
		}

		uris := make([]string, 0, len(m.Images))
		for _, img := range m.Images {
			uris = append(uris, img.URI)
		}
		props := map[string]interface{}{
			"images": uris,
		}
		if !m.CreatedAt.IsZero() {
			props["createdAt"] = m.CreatedAt.UTC().Format(time.RFC3339)
		}

		fc = append(fc, geom.GeoJSONFeature{
			Geometry:   pt.AsGeometry(),
			ID:         m.ID,
			Properties: props,
		})
	}
	return fc, nil
}

// MarshalFeatureCollection is FeatureCollection encoded as JSON.
func MarshalFeatureCollection(markers []core.Marker, srid int) ([]byte, error) {
	fc, err := FeatureCollection(markers, srid)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fc)
}
