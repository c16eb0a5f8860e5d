package geo

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/geomemo/geomemo/pkg/core"
)

func TestHaversineKm_SamePoint(t *testing.T) {
	d := HaversineKm(58.1750, 56.2280, 58.1750, 56.2280)
	if d != 0 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tol                    float64
	}{
		{"one degree of latitude", 0, 0, 1, 0, 111.195, 0.01},
		{"perm scenario far sample", 58.1750, 56.2280, 58.1000, 56.2280, 8.339, 0.01},
		{"perm scenario near sample", 58.1750, 56.2280, 58.1751, 56.2280, 0.0111, 0.0005},
		{"antipodal", 0, 0, 0, 180, math.Pi * EarthRadiusKm, 0.001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.wantKm) > tt.tol {
				t.Errorf("expected %f±%f, got %f", tt.wantKm, tt.tol, got)
			}
		})
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	a := HaversineKm(58.17448, 56.2280, 55.7558, 37.6173)
	b := HaversineKm(55.7558, 37.6173, 58.17448, 56.2280)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("expected symmetric distance, got %f and %f", a, b)
	}
}

func TestDistanceKm(t *testing.T) {
	d := DistanceKm(core.Position{Latitude: 0, Longitude: 0}, core.Marker{Latitude: 1, Longitude: 0})
	if math.Abs(d-111.195) > 0.01 {
		t.Errorf("expected ~111.195, got %f", d)
	}
}

func TestValidLatLon(t *testing.T) {
	if !ValidLatLon(90, -180) {
		t.Error("expected bounds to be valid")
	}
	if ValidLatLon(90.1, 0) || ValidLatLon(0, 180.5) || ValidLatLon(math.NaN(), 0) || ValidLatLon(0, math.Inf(1)) {
		t.Error("expected out of range values to be invalid")
	}
}

func TestPositionFromString_Valid(t *testing.T) {
	pos, err := PositionFromString("58.1750, 56.2280")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Latitude != 58.1750 || pos.Longitude != 56.2280 {
		t.Errorf("unexpected position %+v", pos)
	}
	if !pos.Time.IsZero() {
		t.Errorf("expected zero time, got %v", pos.Time)
	}
}

func TestPositionFromString_WithTimestamp(t *testing.T) {
	pos, err := PositionFromString("58.1750,56.2280,2024-05-01T10:00:00+02:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	if !pos.Time.Equal(want) {
		t.Errorf("expected %v, got %v", want, pos.Time)
	}
}

func TestPositionFromString_Invalid(t *testing.T) {
	inputs := []string{"", "58.1", "abc,56", "58,xyz", "91,0", "58,56,yesterday", "1,2,3,4"}
	for _, in := range inputs {
		_, err := PositionFromString(in)
		if !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("%q: expected ErrInvalidCoordinates, got %v", in, err)
		}
	}
}

func TestPoint4326(t *testing.T) {
	pt, err := Point4326(58.1750, 56.2280)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	coords, ok := pt.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if coords.X != 56.2280 || coords.Y != 58.1750 {
		t.Errorf("expected X=lon Y=lat, got %+v", coords.XY)
	}
}

func TestPoint4326_Invalid(t *testing.T) {
	_, err := Point4326(91, 0)
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestCoords3857From4326_Origin(t *testing.T) {
	point, err := Coords3857From4326(0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	coords, ok := point.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if math.Abs(coords.X) > 1e-6 || math.Abs(coords.Y) > 1e-6 {
		t.Errorf("expected origin, got %+v", coords.XY)
	}
}

func TestCoords3857From4326_KnownPoint(t *testing.T) {
	point, err := Coords3857From4326(180, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	coords, _ := point.Coordinates()
	if math.Abs(coords.X-20037508.34) > 1 {
		t.Errorf("expected X≈20037508.34, got %f", coords.X)
	}
}

func TestCoords3857From4326_Invalid(t *testing.T) {
	_, err := Coords3857From4326(0, 95)
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}
