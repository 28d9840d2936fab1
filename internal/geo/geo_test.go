package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	points := []Coordinate{
		{Latitude: 0, Longitude: 0},
		{Latitude: 51.5074, Longitude: -0.1278},
		{Latitude: -33.8688, Longitude: 151.2093},
	}
	for _, p := range points {
		assert.Zero(t, DistanceBetween(p, p))
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := Coordinate{Latitude: 51.5074, Longitude: -0.1278}
	b := Coordinate{Latitude: 48.8566, Longitude: 2.3522}
	assert.InDelta(t, DistanceBetween(a, b), DistanceBetween(b, a), 1e-9)
}

func TestDistanceKnownValue(t *testing.T) {
	// London to Paris, roughly 343.5 km great-circle.
	d := Distance(51.5074, -0.1278, 48.8566, 2.3522)
	require.InDelta(t, 343500, d, 1500)
}

func TestDistanceShortRange(t *testing.T) {
	// Two points ~111m apart along a meridian (0.001 degrees latitude).
	d := Distance(40.0, 29.0, 40.001, 29.0)
	require.InDelta(t, 111.2, d, 1.0)
}

func TestWithinRadius(t *testing.T) {
	host := Coordinate{Latitude: 40.0, Longitude: 29.0}
	near := Coordinate{Latitude: 40.0003, Longitude: 29.0}
	far := Coordinate{Latitude: 40.01, Longitude: 29.0}

	assert.True(t, WithinRadius(host, near, 50))
	assert.False(t, WithinRadius(host, far, 50))
}

func TestWithinRadiusDisabled(t *testing.T) {
	host := Coordinate{Latitude: 40.0, Longitude: 29.0}
	far := Coordinate{Latitude: 41.0, Longitude: 30.0}
	assert.True(t, WithinRadius(host, far, 0))
}
