// Package geo computes derived scalar attributes from reach geometry.
package geo

import (
	"math"

	"github.com/cascadiawater/reachsync/internal/errors"
)

// earthRadiusKm is the mean earth radius used for great-circle distances.
// Must match the distance convention of the target feature services (WGS84
// geographic coordinates, lengths displayed in kilometers).
const earthRadiusKm = 6371.0087714

// ErrNoGeometry signals that a length is undefined because the geometry has
// no paths at all. Distinct from a zero-length degenerate path.
var ErrNoGeometry = errors.NewStd("geometry has no paths")

// Point is a single longitude/latitude vertex in decimal degrees (WGS84).
type Point struct {
	Lon float64
	Lat float64
}

// Path is an ordered sequence of vertices describing one part of a reach.
type Path []Point

// Geometry is an ordered sequence of paths. Multi-part geometries occur when
// a reach is split, e.g. by a portage.
type Geometry []Path

// IsEmpty reports whether the geometry has no paths.
func (g Geometry) IsEmpty() bool {
	return len(g) == 0
}

// Distance returns the great-circle distance between two points in kilometers.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PathLength returns the length of a single path in kilometers, summing the
// great-circle distance between consecutive vertex pairs left to right.
// Paths with fewer than two vertices contribute zero length without error.
func PathLength(p Path) float64 {
	if len(p) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(p); i++ {
		total += Distance(p[i-1], p[i])
	}
	return total
}

// Length returns the total length of a geometry in kilometers.
//
// The total is the left-to-right sum of per-path lengths, which keeps results
// reproducible bit-for-bit for a given vertex sequence. A geometry with zero
// paths returns ErrNoGeometry; the caller must not conflate that with a
// zero-length reach.
func Length(g Geometry) (float64, error) {
	if g.IsEmpty() {
		return 0, errors.New(ErrNoGeometry).
			Component("geo").
			Category(errors.CategoryNoGeometry).
			Build()
	}
	var total float64
	for _, p := range g {
		total += PathLength(p)
	}
	return total, nil
}

// Midpoint returns the point halfway between a and b in coordinate space.
// Used for the centroid layer's representative point, matching the stored
// convention of averaging the access coordinates.
func Midpoint(a, b Point) Point {
	return Point{
		Lon: (a.Lon + b.Lon) / 2,
		Lat: (a.Lat + b.Lat) / 2,
	}
}
