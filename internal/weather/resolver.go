package weather

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/yegors/co-wx/internal/physics"
	"github.com/yegors/co-wx/internal/stations"
	"github.com/yegors/co-wx/pkg/logger"
)

// Resolution is the winds-aloft station chosen for a query point
type Resolution struct {
	Station    stations.Station `json:"station"`
	DistanceNM float64          `json:"distance_nm"`
}

// Resolver finds the nearest winds-aloft publishing station
type Resolver struct {
	directory stations.Directory
	logger    *logger.Logger
}

// NewResolver creates a resolver over the given station directory
func NewResolver(directory stations.Directory, log *logger.Logger) *Resolver {
	return &Resolver{
		directory: directory,
		logger:    log.Named("wx-resolver"),
	}
}

// Resolve returns code itself when it publishes winds aloft, otherwise the
// nearest publishing station to it
func (r *Resolver) Resolve(ctx context.Context, code string) (Resolution, error) {
	origin, err := r.directory.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Resolution{}, err
		}
		return Resolution{}, fmt.Errorf("failed to look up station %s: %w", code, err)
	}

	if origin.PublishesWindsAloft {
		return Resolution{Station: origin}, nil
	}

	res, err := r.nearest(ctx, origin.Latitude, origin.Longitude)
	if err != nil {
		return Resolution{}, err
	}

	r.logger.Debug("Resolved nearest winds aloft station",
		logger.String("origin", origin.Code),
		logger.String("station", res.Station.Code),
		logger.Float64("distance_nm", res.DistanceNM))

	return res, nil
}

// ResolveCoordinate returns the publishing station nearest to (lat, lon)
func (r *Resolver) ResolveCoordinate(ctx context.Context, lat, lon float64) (Resolution, error) {
	if !validCoordinate(lat, lon) {
		return Resolution{}, fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinate, lat, lon)
	}
	return r.nearest(ctx, lat, lon)
}

func validCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// nearest scans every publishing station; ties keep the first in enumeration order
func (r *Resolver) nearest(ctx context.Context, lat, lon float64) (Resolution, error) {
	all, err := r.directory.All(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to enumerate stations: %w", err)
	}

	var (
		best  Resolution
		found bool
	)
	for _, st := range all {
		if !st.PublishesWindsAloft {
			continue
		}
		d := physics.HaversineNM(lat, lon, st.Latitude, st.Longitude)
		if !found || d < best.DistanceNM {
			best = Resolution{Station: st, DistanceNM: d}
			found = true
		}
	}

	if !found {
		return Resolution{}, fmt.Errorf("%w: no winds aloft stations in directory", ErrNoDataAvailable)
	}
	return best, nil
}

// PublishingSet returns the codes of every winds-aloft publishing station
func PublishingSet(ctx context.Context, directory stations.Directory) (map[string]struct{}, error) {
	all, err := directory.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate stations: %w", err)
	}

	set := make(map[string]struct{})
	for _, st := range all {
		if st.PublishesWindsAloft {
			set[st.Code] = struct{}{}
		}
	}
	return set, nil
}
