package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/ironwatch/site/pkg/core"
)

func TestPointFromLatLng_Origin(t *testing.T) {
	point, err := PointFromLatLng(core.LatLng{Latitude: 0, Longitude: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	coords, ok := point.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if math.Abs(coords.X) > 0.001 || math.Abs(coords.Y) > 0.001 {
		t.Errorf("expected (0,0), got (%f,%f)", coords.X, coords.Y)
	}
}

func TestPointFromLatLng_KnownPoint(t *testing.T) {
	// London
	point, err := PointFromLatLng(core.LatLng{Latitude: 51.5074, Longitude: -0.1278})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	coords, _ := point.Coordinates()
	if math.Abs(coords.X-(-14226.6)) > 1 {
		t.Errorf("expected X≈-14226.6, got %f", coords.X)
	}
	if math.Abs(coords.Y-6711542.5) > 5 {
		t.Errorf("expected Y≈6711542.5, got %f", coords.Y)
	}
}

func TestPointFromLatLng_Invalid(t *testing.T) {
	tests := []core.LatLng{
		{Latitude: 91, Longitude: 0},
		{Latitude: 0, Longitude: -181},
		{Latitude: math.NaN(), Longitude: 0},
	}
	for _, ll := range tests {
		point, err := PointFromLatLng(ll)
		if !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("%v: expected ErrInvalidCoordinates, got %v", ll, err)
		}
		if !point.IsEmpty() {
			t.Errorf("%v: expected empty point", ll)
		}
	}
}

func TestLatLngFromPoint_RoundTrip(t *testing.T) {
	in := core.LatLng{Latitude: -33.8688, Longitude: 151.2093}
	point, err := PointFromLatLng(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, ok := LatLngFromPoint(point)
	if !ok {
		t.Fatal("expected coordinates")
	}
	if math.Abs(out.Latitude-in.Latitude) > 1e-6 || math.Abs(out.Longitude-in.Longitude) > 1e-6 {
		t.Errorf("round trip mismatch: %v != %v", out, in)
	}
}

func TestLatLngFromPoint_Empty(t *testing.T) {
	point, _ := PointFromLatLng(core.LatLng{Latitude: 100})
	if _, ok := LatLngFromPoint(point); ok {
		t.Error("expected empty point to report false")
	}
}
