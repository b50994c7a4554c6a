package physics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHaversineNM(t *testing.T) {
	// KLAX -> KJFK is roughly 2150 NM
	d := HaversineNM(33.9425, -118.4081, 40.6413, -73.7781)
	assert.InDelta(t, 2150, d, 15)
}

func TestHaversineNMSymmetricAndZero(t *testing.T) {
	a := HaversineNM(47.45, -122.31, 45.59, -122.60)
	b := HaversineNM(45.59, -122.60, 47.45, -122.31)

	assert.Equal(t, a, b)
	assert.Zero(t, HaversineNM(39.86, -104.67, 39.86, -104.67))
}

func TestStandardTemperature(t *testing.T) {
	assert.InDelta(t, 15.0, StandardTemperature(0), 1e-9)
	assert.InDelta(t, 9.0, StandardTemperature(3000), 1e-9)
	assert.InDelta(t, -3.0, StandardTemperature(9000), 1e-9)
}

func TestDensityAltitude(t *testing.T) {
	oat := FahrenheitToCelsius(59)
	assert.InDelta(t, 15.0, oat, 1e-9)
	assert.InDelta(t, 3720.0, DensityAltitude(3000, oat), 1e-6)

	// Standard day at sea level
	assert.InDelta(t, 0.0, DensityAltitude(0, 15), 1e-9)
}

func TestMagneticVariationInRange(t *testing.T) {
	d, ok := MagneticVariation(47.45, -122.31, 0, time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC))
	if !ok {
		t.Skip("magnetic model unavailable for date")
	}
	assert.True(t, math.Abs(d) <= 180)
}

func TestTrueToMagnetic(t *testing.T) {
	assert.InDelta(t, 255.0, TrueToMagnetic(270, 15), 1e-9)
	assert.InDelta(t, 5.0, TrueToMagnetic(350, -15), 1e-9)
	assert.InDelta(t, 360.0, TrueToMagnetic(10, 10), 1e-9)
}
