package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceIdentity(t *testing.T) {
	points := []Point{
		{Lat: 0, Lng: 0},
		{Lat: 19.07, Lng: 72.87},
		{Lat: -33.86, Lng: 151.20},
		{Lat: 89.9, Lng: -179.9},
	}
	for _, p := range points {
		assert.Equal(t, 0.0, Distance(p, p))
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := Point{Lat: 19.07, Lng: 72.87}
	b := Point{Lat: 28.61, Lng: 77.20}
	assert.Equal(t, Distance(a, b), Distance(b, a))
}

func TestDistanceNonNegative(t *testing.T) {
	pairs := [][2]Point{
		{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 180}},
		{{Lat: -45, Lng: -90}, {Lat: 45, Lng: 90}},
		{{Lat: 1e-9, Lng: 0}, {Lat: 0, Lng: 1e-9}},
	}
	for _, pr := range pairs {
		assert.GreaterOrEqual(t, Distance(pr[0], pr[1]), 0.0)
	}
}

func TestDistanceKnownValue(t *testing.T) {
	// Mumbai to Delhi is roughly 1150 km
	a := Point{Lat: 19.07, Lng: 72.87}
	b := Point{Lat: 28.61, Lng: 77.20}
	d := Distance(a, b)
	assert.InDelta(t, 1150, d, 25)
}

func TestWithinRadius(t *testing.T) {
	center := Point{Lat: 19.07, Lng: 72.87}
	near := Point{Lat: 19.08, Lng: 72.88}
	far := Point{Lat: 28.61, Lng: 77.20}

	assert.True(t, WithinRadius(center, near, 5))
	assert.False(t, WithinRadius(center, far, 5))
}
