package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by the great-circle formula.
const EarthRadiusMeters = 6371000.0

// Coordinate is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Distance returns the great-circle distance in meters between two
// coordinates using the Haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// DistanceBetween is Distance over Coordinate values.
func DistanceBetween(a, b Coordinate) float64 {
	return Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// WithinRadius reports whether b lies within radiusMeters of a.
// A non-positive radius disables the check and always passes.
func WithinRadius(a, b Coordinate, radiusMeters float64) bool {
	if radiusMeters <= 0 {
		return true
	}
	return DistanceBetween(a, b) <= radiusMeters
}
