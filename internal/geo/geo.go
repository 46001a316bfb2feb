package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/ironwatch/site/pkg/core"
)

// Site locations are stored as EPSG:3857 points in WKB so the same column
// works in SQLite, which has no spatial types, and in PostGIS.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ValidLatLng reports whether ll is a finite WGS84 coordinate.
func ValidLatLng(ll core.LatLng) bool {
	if math.IsNaN(ll.Latitude) || math.IsNaN(ll.Longitude) {
		return false
	}
	return ll.Latitude >= -90 && ll.Latitude <= 90 &&
		ll.Longitude >= -180 && ll.Longitude <= 180
}

// PointFromLatLng projects a WGS84 coordinate to an EPSG:3857 point.
func PointFromLatLng(ll core.LatLng) (geom.Point, error) {
	if !ValidLatLng(ll) {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(ll.Longitude, ll.Latitude, 0)
	pt, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Type: geom.DimXY,
	})
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), errors.Join(ErrInvalidCoordinates, err)
	}
	return pt, nil
}

// LatLngFromPoint projects an EPSG:3857 point back to WGS84. Empty points
// report false.
func LatLngFromPoint(p geom.Point) (core.LatLng, bool) {
	c, ok := p.Coordinates()
	if !ok {
		return core.LatLng{}, false
	}
	f := wgs84.EPSG().Transform(3857, 4326)
	lon, lat, _ := f(c.X, c.Y, 0)
	return core.LatLng{Latitude: lat, Longitude: lon}, true
}
