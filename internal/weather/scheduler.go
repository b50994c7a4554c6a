package weather

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yegors/co-wx/pkg/logger"
)

// Invalidator is something that can be cleared on a schedule
type Invalidator interface {
	Invalidate()
}

// InvalidationScheduler calls Invalidate at fixed UTC times of day
type InvalidationScheduler struct {
	offsets []time.Duration // since UTC midnight, ascending
	target  Invalidator
	clock   clockwork.Clock
	logger  *logger.Logger
}

// NewInvalidationScheduler parses times ("HH:MM", UTC) and returns a scheduler for target
func NewInvalidationScheduler(times []string, target Invalidator, clock clockwork.Clock, log *logger.Logger) (*InvalidationScheduler, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("at least one invalidation time is required")
	}

	offsets := make([]time.Duration, 0, len(times))
	for _, hhmm := range times {
		t, err := time.Parse("15:04", hhmm)
		if err != nil {
			return nil, fmt.Errorf("invalid invalidation time %q: %w", hhmm, err)
		}
		offsets = append(offsets, time.Duration(t.Hour())*time.Hour+time.Duration(t.Minute())*time.Minute)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &InvalidationScheduler{
		offsets: offsets,
		target:  target,
		clock:   clock,
		logger:  log.Named("wx-scheduler"),
	}, nil
}

// Next returns the first scheduled time strictly after now
func (s *InvalidationScheduler) Next(now time.Time) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for _, off := range s.offsets {
		if at := midnight.Add(off); at.After(now) {
			return at
		}
	}
	return midnight.AddDate(0, 0, 1).Add(s.offsets[0])
}

// Run blocks, invalidating the target at each scheduled time, until ctx is done
func (s *InvalidationScheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting winds aloft invalidation schedule",
		logger.Int("times_per_day", len(s.offsets)))

	for {
		now := s.clock.Now()
		next := s.Next(now)
		timer := s.clock.NewTimer(next.Sub(now))

		s.logger.Debug("Next winds aloft invalidation scheduled",
			logger.Time("at", next))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Winds aloft invalidation schedule stopped")
			return nil
		case <-timer.Chan():
			s.target.Invalidate()
		}
	}
}
