package physics

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	EarthRadiusNM   = 3440.065 // Mean Earth radius in nautical miles
	FeetToMeters    = 0.3048
	SeaLevelISATemp = 15.0 // ISA temperature at sea level (Celsius)
	ISALapsePer1000 = 2.0  // Standard lapse rate approximation (Celsius per 1000 ft)
	DensityAltPerC  = 120.0
)

// HaversineNM returns the great-circle distance in nautical miles between two
// WGS-84 coordinates given in degrees
func HaversineNM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusNM * c
}

// StandardTemperature returns the ISA temperature (Celsius) at the given altitude in feet
// using the 2°C per 1000 ft approximation
func StandardTemperature(altitudeFt float64) float64 {
	return SeaLevelISATemp - ISALapsePer1000*(altitudeFt/1000.0)
}

// FahrenheitToCelsius converts a temperature from Fahrenheit to Celsius
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) / 1.8
}

// DensityAltitude returns density altitude in feet.
// DA = PA + 120 * (OAT - ISA(PA))
func DensityAltitude(pressureAltFt, oatCelsius float64) float64 {
	return pressureAltFt + DensityAltPerC*(oatCelsius-StandardTemperature(pressureAltFt))
}

// MagneticVariation calculates the magnetic declination for a given position and time.
// Returns declination in degrees (+East, -West) and false when the model cannot be evaluated.
func MagneticVariation(lat, lon, altFt float64, date time.Time) (float64, bool) {
	loc := egm96.NewLocationGeodetic(lat, lon, altFt*FeetToMeters)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0, false
	}

	return mag.D(), true
}

// TrueToMagnetic converts a true heading to magnetic using the given declination,
// normalized to the range 1-360
func TrueToMagnetic(trueDeg, declination float64) float64 {
	m := math.Mod(trueDeg-declination, 360)
	if m <= 0 {
		m += 360
	}
	return m
}
