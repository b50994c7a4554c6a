// Package stations defines the station reference data consumed by the weather core.
package stations

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when a station code is unknown to the directory
var ErrNotFound = errors.New("station not found")

// Station is immutable airport/station reference data
type Station struct {
	Code                string  `json:"code"`
	Name                string  `json:"name"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
	ElevationFeet       *int    `json:"elevation_feet,omitempty"`
	PublishesWindsAloft bool    `json:"publishes_winds_aloft"`
}

// Directory is a read-only lookup service for stations
type Directory interface {
	// Lookup returns the station for code or an error wrapping ErrNotFound
	Lookup(ctx context.Context, code string) (Station, error)
	// All enumerates every station in a stable order
	All(ctx context.Context) ([]Station, error)
}

// NormalizeCode upper-cases and trims a station code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
