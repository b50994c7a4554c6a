package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/yegors/co-wx/internal/observability"
	"github.com/yegors/co-wx/internal/stations"
	"github.com/yegors/co-wx/pkg/logger"
)

const (
	// DefaultObservationTTL is how long a decomposed observation is served from cache
	DefaultObservationTTL = 5 * time.Minute

	observationsCache = "observations"
)

// ObservationFetcher fetches and decomposes the current observation for a station
type ObservationFetcher func(ctx context.Context, code string) (*StationWeather, error)

// ObservationCache is a TTL cache of station weather keyed by station code.
// Concurrent misses for the same station share one fetch.
type ObservationCache struct {
	entries *expirable.LRU[string, *StationWeather]
	fetch   ObservationFetcher
	ttl     time.Duration
	group   singleflight.Group
	metrics *observability.Metrics
	logger  *logger.Logger
}

// NewObservationCache creates a cache holding up to size stations for ttl after each write
func NewObservationCache(fetch ObservationFetcher, size int, ttl time.Duration, metrics *observability.Metrics, log *logger.Logger) *ObservationCache {
	if ttl <= 0 {
		ttl = DefaultObservationTTL
	}
	return &ObservationCache{
		entries: expirable.NewLRU[string, *StationWeather](size, nil, ttl),
		fetch:   fetch,
		ttl:     ttl,
		metrics: metrics,
		logger:  log.Named("observation-cache"),
	}
}

// Get returns the cached observation for code, fetching it on a miss.
// Failed fetches are not cached.
func (c *ObservationCache) Get(ctx context.Context, code string) (*StationWeather, error) {
	code = stations.NormalizeCode(code)

	if v, ok := c.entries.Get(code); ok {
		c.metrics.CacheHit(observationsCache)
		return v, nil
	}
	c.metrics.CacheMiss(observationsCache)

	ch := c.group.DoChan(code, func() (any, error) {
		v, err := c.fetch(context.WithoutCancel(ctx), code)
		if err != nil {
			return nil, err
		}
		c.entries.Add(code, v)

		c.logger.Debug("Observation cached",
			logger.String("station", code),
			logger.Time("expires_at", time.Now().Add(c.ttl)))
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for %s observation: %v", ErrUpstreamUnavailable, code, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*StationWeather), nil
	}
}

// GetStats returns cache statistics
func (c *ObservationCache) GetStats() map[string]any {
	return map[string]any{
		"entries":     c.entries.Len(),
		"ttl_seconds": c.ttl.Seconds(),
	}
}
