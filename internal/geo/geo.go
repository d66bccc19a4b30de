package geo

import "math"

// earthRadiusKm is the WGS-84 mean sphere approximation.
const earthRadiusKm = 6371.0

type Coordinate struct {
	Lat float64
	Lon float64
}

// DistanceKm returns the great-circle distance between two coordinates in
// kilometers using the Haversine formula.
func DistanceKm(a, b Coordinate) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}
