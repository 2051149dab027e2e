// Package geocode resolves club addresses to coordinates through two
// providers, validates results against postal centroids and falls back to
// coarser coordinates when everything else fails.
package geocode

import "math"

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two points in
// kilometers.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
