package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	origin := Point{Lat: 0, Lon: 0}

	t.Run("same point is zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Distance(origin, origin))
		p := Point{Lat: 44.8125, Lon: 20.4612}
		assert.Equal(t, 0.0, Distance(p, p))
	})

	t.Run("small offsets along the meridian", func(t *testing.T) {
		assert.InDelta(t, 27.8, Distance(origin, Point{Lat: 0.00025, Lon: 0}), 0.1)
		assert.InDelta(t, 111.2, Distance(origin, Point{Lat: 0.001, Lon: 0}), 0.1)
	})

	t.Run("is symmetric", func(t *testing.T) {
		a := Point{Lat: 51.5007, Lon: -0.1246}
		b := Point{Lat: 40.6892, Lon: -74.0445}
		assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-6)
		assert.InDelta(t, 5575000, Distance(a, b), 5000)
	})

	t.Run("antipodes are half the circumference", func(t *testing.T) {
		d := Distance(origin, Point{Lat: 0, Lon: 180})
		assert.InDelta(t, math.Pi*EarthRadiusMeters, d, 1e-3)
	})
}

// northOf moves p north by meters along its meridian.
func northOf(p Point, meters float64) Point {
	return Point{Lat: p.Lat + meters/EarthRadiusMeters*180/math.Pi, Lon: p.Lon}
}

func TestDistance_AlongMeridian(t *testing.T) {
	origin := Point{Lat: 0, Lon: 0}
	for _, meters := range []float64{1, 49, 50, 51, 1000} {
		assert.InDelta(t, meters, Distance(origin, northOf(origin, meters)), 1e-6)
	}
}

func TestValidCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		valid    bool
	}{
		{"origin", 0, 0, true},
		{"corners", 90, 180, true},
		{"negative corners", -90, -180, true},
		{"lat too high", 90.0001, 0, false},
		{"lat too low", -91, 0, false},
		{"lon too high", 0, 180.5, false},
		{"lon too low", 0, -181, false},
		{"nan lat", math.NaN(), 0, false},
		{"nan lon", 0, math.NaN(), false},
		{"inf lat", math.Inf(1), 0, false},
		{"inf lon", 0, math.Inf(-1), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidCoordinates(tc.lat, tc.lon))
			assert.Equal(t, tc.valid, Point{Lat: tc.lat, Lon: tc.lon}.Valid())
		})
	}
}
