package weather

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yegors/co-wx/internal/observability"
	"github.com/yegors/co-wx/internal/stations"
	"github.com/yegors/co-wx/pkg/logger"
)

const (
	windsAloftFeed  = "winds_aloft"
	windsAloftCache = "winds_aloft"
	tableFlightKey  = "table"
)

// TableLoader fetches and parses a complete winds-aloft table
type TableLoader func(ctx context.Context) (*WindsAloftTable, error)

// NewBulkLoader returns a TableLoader that fetches the bulk product from url
// and keeps rows for the directory's publishing stations
func NewBulkLoader(upstream Upstream, url, prefix string, directory stations.Directory) TableLoader {
	return func(ctx context.Context) (*WindsAloftTable, error) {
		publishing, err := PublishingSet(ctx, directory)
		if err != nil {
			return nil, err
		}

		text, err := upstream.FetchText(ctx, windsAloftFeed, url)
		if err != nil {
			return nil, err
		}

		table := ParseBulkText(text, prefix, func(code string) bool {
			_, ok := publishing[code]
			return ok
		})
		if table.Len() == 0 && len(publishing) > 0 {
			return nil, fmt.Errorf("%w: winds aloft product contained no known stations", ErrMalformedUpstreamData)
		}
		return table, nil
	}
}

// WindsAloftCache holds the current winds-aloft table. The first Get after
// construction or Invalidate loads it once, shared by all concurrent callers.
type WindsAloftCache struct {
	load    TableLoader
	timeout time.Duration
	metrics *observability.Metrics
	logger  *logger.Logger

	table    atomic.Pointer[WindsAloftTable]
	loadedAt atomic.Pointer[time.Time]
	group    singleflight.Group

	// mu orders publishes against Invalidate; generation counts invalidations
	mu         sync.Mutex
	generation uint64
}

// NewWindsAloftCache creates an empty cache. timeout bounds each load; zero means unbounded.
func NewWindsAloftCache(load TableLoader, timeout time.Duration, metrics *observability.Metrics, log *logger.Logger) *WindsAloftCache {
	return &WindsAloftCache{
		load:    load,
		timeout: timeout,
		metrics: metrics,
		logger:  log.Named("winds-aloft-cache"),
	}
}

// Get returns the current table, loading it if the cache is empty.
// A failed load leaves the cache empty and is returned only to the callers
// that shared that load.
func (c *WindsAloftCache) Get(ctx context.Context) (*WindsAloftTable, error) {
	if t := c.table.Load(); t != nil {
		c.metrics.CacheHit(windsAloftCache)
		return t, nil
	}
	c.metrics.CacheMiss(windsAloftCache)

	ch := c.group.DoChan(tableFlightKey, func() (any, error) {
		if t := c.table.Load(); t != nil {
			return t, nil
		}

		c.mu.Lock()
		gen := c.generation
		c.mu.Unlock()

		// The load outlives any single caller's cancellation
		loadCtx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(loadCtx, c.timeout)
			defer cancel()
		}

		started := time.Now()
		t, err := c.load(loadCtx)
		if err != nil {
			c.logger.Warn("Failed to load winds aloft table",
				logger.Error(err),
				logger.Duration("elapsed", time.Since(started)))
			return nil, err
		}

		// An Invalidate during the load makes this table stale for later readers
		if c.publish(t, gen) {
			c.metrics.TableRefreshed(t.Len())
		}

		c.logger.Info("Winds aloft table loaded",
			logger.Int("stations", t.Len()),
			logger.Duration("elapsed", time.Since(started)))
		return t, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for winds aloft table: %v", ErrUpstreamUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*WindsAloftTable), nil
	}
}

// publish stores t unless the cache was invalidated after gen was read
func (c *WindsAloftCache) publish(t *WindsAloftTable, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		return false
	}
	c.table.Store(t)
	now := time.Now().UTC()
	c.loadedAt.Store(&now)
	return true
}

// Invalidate discards the current table; the next Get reloads it
func (c *WindsAloftCache) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.table.Store(nil)
	c.loadedAt.Store(nil)
	c.mu.Unlock()

	c.group.Forget(tableFlightKey)
	c.metrics.TableInvalidated()

	c.logger.Info("Winds aloft table invalidated")
}

func (c *WindsAloftCache) populated() bool {
	return c.table.Load() != nil
}

// GetStats returns cache statistics
func (c *WindsAloftCache) GetStats() map[string]any {
	t := c.table.Load()
	stats := map[string]any{
		"populated": t != nil,
		"stations":  t.Len(),
	}
	if at := c.loadedAt.Load(); at != nil {
		stats["loaded_at"] = *at
	}
	return stats
}
