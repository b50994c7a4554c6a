package weather

import (
	"math"
	"time"
)

// Config represents the weather service configuration
type Config struct {
	APIBaseURL     string
	NationalPrefix string

	RequestTimeout time.Duration
	MaxRetries     int

	WindsAloftURL     string
	InvalidationTimes []string

	ObservationURL      string
	ObservationAPIKey   string
	ObservationCacheTTL time.Duration
	ObservationCacheMax int

	HazardsURL    string
	DefaultRegion BoundingBox
}

// WindsAloftReport is a decoded winds-aloft forecast for one altitude bin
type WindsAloftReport struct {
	Station           string      `json:"station"`
	DistanceNM        float64     `json:"distance_nm"`
	RequestedAltitude int         `json:"requested_altitude_ft"`
	Altitude          int         `json:"altitude_ft"`
	RawCode           string      `json:"raw_code"`
	Wind              DecodedWind `json:"wind"`

	// MagneticVariation is the WMM declination at the station, +East
	MagneticVariation *float64 `json:"magnetic_variation,omitempty"`
	// MagneticDirection is Wind.Direction in magnetic degrees, set only for numeric directions
	MagneticDirection *int `json:"magnetic_direction,omitempty"`
}

// roundDistance rounds a distance to the 2 decimal places reported to clients
func roundDistance(nm float64) float64 {
	return math.Round(nm*100) / 100
}

// Legacy renders the "{direction}@{speed}@{raw}@{station}@{distance}" string
func (r *WindsAloftReport) Legacy() string {
	return FormatLegacy(r.Wind, r.RawCode, r.Station, r.DistanceNM)
}

// PirepQuery selects pilot reports around a station
type PirepQuery struct {
	Station  string
	Distance int // statute miles
	Age      int // hours
}

// WindTempQuery selects a winds/temperatures aloft text product
type WindTempQuery struct {
	Region   string
	Forecast string
	Level    string
}
