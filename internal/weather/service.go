package weather

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yegors/co-wx/internal/observability"
	"github.com/yegors/co-wx/internal/physics"
	"github.com/yegors/co-wx/internal/stations"
	"github.com/yegors/co-wx/pkg/logger"
)

// Provider is the set of weather queries served over HTTP
type Provider interface {
	StationWeather(ctx context.Context, code string) (*StationWeather, error)
	DewPointSpread(ctx context.Context, code string) (string, error)
	WindsAloft(ctx context.Context, code string, altitude int) (*WindsAloftReport, error)
	WindsAloftAt(ctx context.Context, lat, lon float64, altitude int) (*WindsAloftReport, error)
	Sigmets(ctx context.Context, bbox BoundingBox) ([]HazardFeature, error)
	GAirmets(ctx context.Context, bbox BoundingBox) (*AirmetResponse, error)
	TAF(ctx context.Context, code string) (string, error)
	Pireps(ctx context.Context, q PirepQuery) (string, error)
	WindTemp(ctx context.Context, q WindTempQuery) (string, error)
	DefaultRegion() BoundingBox
}

// Service wires the caches, resolver and feeds together
type Service struct {
	config   Config
	upstream Upstream
	clock    clockwork.Clock
	logger   *logger.Logger

	resolver     *Resolver
	windsAloft   *WindsAloftCache
	observations *ObservationCache
	scheduler    *InvalidationScheduler

	// Service lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

var _ Provider = (*Service)(nil)

// NewService creates a new weather service
func NewService(cfg Config, directory stations.Directory, upstream Upstream, clock clockwork.Clock, metrics *observability.Metrics, log *logger.Logger) (*Service, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.NationalPrefix == "" {
		cfg.NationalPrefix = "K"
	}

	s := &Service{
		config:   cfg,
		upstream: upstream,
		clock:    clock,
		logger:   log.Named("weather-service"),
		resolver: NewResolver(directory, log),
	}

	s.windsAloft = NewWindsAloftCache(
		NewBulkLoader(upstream, cfg.WindsAloftURL, cfg.NationalPrefix, directory),
		loadTimeout(cfg),
		metrics,
		log,
	)
	s.observations = NewObservationCache(s.fetchObservation, cfg.ObservationCacheMax, cfg.ObservationCacheTTL, metrics, log)

	scheduler, err := NewInvalidationScheduler(cfg.InvalidationTimes, s.windsAloft, clock, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create invalidation scheduler: %w", err)
	}
	s.scheduler = scheduler

	return s, nil
}

// loadTimeout bounds a winds-aloft load across all retry attempts
func loadTimeout(cfg Config) time.Duration {
	if cfg.RequestTimeout <= 0 {
		return 0
	}
	return time.Duration(cfg.MaxRetries+1) * (cfg.RequestTimeout + time.Second)
}

// Start begins the scheduled winds-aloft invalidation
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info("Starting weather service",
		logger.Int("invalidation_times", len(s.config.InvalidationTimes)))

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.scheduler.Run(s.ctx)
	}()

	s.started = true
	return nil
}

// Stop gracefully shuts down the weather service
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info("Stopping weather service")

	s.cancel()
	s.wg.Wait()

	s.started = false
	s.logger.Info("Weather service stopped")
	return nil
}

// WindsAloftCache exposes the winds-aloft cache for manual invalidation
func (s *Service) WindsAloftCache() *WindsAloftCache {
	return s.windsAloft
}

// DefaultRegion returns the configured hazard filter region
func (s *Service) DefaultRegion() BoundingBox {
	return s.config.DefaultRegion
}

// StationWeather returns the decomposed current observation for a station
func (s *Service) StationWeather(ctx context.Context, code string) (*StationWeather, error) {
	return s.observations.Get(ctx, code)
}

func (s *Service) fetchObservation(ctx context.Context, code string) (*StationWeather, error) {
	endpoint := strings.ReplaceAll(s.config.ObservationURL, "{station}", url.PathEscape(code))

	headers := map[string]string{}
	if s.config.ObservationAPIKey != "" {
		headers["X-API-Key"] = s.config.ObservationAPIKey
	}

	raw, err := s.upstream.FetchJSON(ctx, "metar", endpoint, headers)
	if err != nil {
		return nil, err
	}

	wx, err := Decompose(raw)
	if err != nil {
		return nil, fmt.Errorf("station %s: %w", code, err)
	}
	return wx, nil
}

// DewPointSpread returns the temperature/dew point spread string for a station
func (s *Service) DewPointSpread(ctx context.Context, code string) (string, error) {
	wx, err := s.StationWeather(ctx, code)
	if err != nil {
		return "", err
	}
	return DewPointSpread(wx.MetarComponents), nil
}

// WindsAloft returns the forecast nearest to altitude at code or its nearest publishing station
func (s *Service) WindsAloft(ctx context.Context, code string, altitude int) (*WindsAloftReport, error) {
	res, err := s.resolver.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.windsAloftReport(ctx, res, altitude)
}

// WindsAloftAt returns the forecast from the publishing station nearest to (lat, lon)
func (s *Service) WindsAloftAt(ctx context.Context, lat, lon float64, altitude int) (*WindsAloftReport, error) {
	res, err := s.resolver.ResolveCoordinate(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	return s.windsAloftReport(ctx, res, altitude)
}

func (s *Service) windsAloftReport(ctx context.Context, res Resolution, altitude int) (*WindsAloftReport, error) {
	table, err := s.windsAloft.Get(ctx)
	if err != nil {
		return nil, err
	}

	row, ok := table.Row(res.Station.Code)
	if !ok {
		return nil, fmt.Errorf("%w: no winds aloft forecast for %s", ErrNoDataAvailable, res.Station.Code)
	}

	bin := AltitudeBin(altitude)
	report := &WindsAloftReport{
		Station:           res.Station.Code,
		DistanceNM:        roundDistance(res.DistanceNM),
		RequestedAltitude: altitude,
		Altitude:          AltitudeBins[bin],
		RawCode:           row[bin],
		Wind:              DecodeCode(row[bin]),
	}

	if decl, ok := physics.MagneticVariation(res.Station.Latitude, res.Station.Longitude, float64(report.Altitude), s.clock.Now()); ok {
		report.MagneticVariation = &decl
		if trueDir, err := strconv.Atoi(report.Wind.Direction); err == nil {
			magDir := int(math.Round(physics.TrueToMagnetic(float64(trueDir), decl)))
			if magDir == 0 {
				magDir = 360
			}
			report.MagneticDirection = &magDir
		}
	}

	return report, nil
}

// Sigmets returns the SIGMET features with any vertex inside bbox
func (s *Service) Sigmets(ctx context.Context, bbox BoundingBox) ([]HazardFeature, error) {
	raw, err := s.upstream.FetchJSON(ctx, "sigmet", s.config.HazardsURL, nil)
	if err != nil {
		return nil, err
	}

	features, err := ParseHazards(raw)
	if err != nil {
		return nil, err
	}

	filtered := FilterHazards(features, bbox)
	s.logger.Debug("Filtered SIGMETs",
		logger.Int("total", len(features)),
		logger.Int("matched", len(filtered)))
	return filtered, nil
}

// GAirmets returns today's (UTC) G-AIRMETs within bbox
func (s *Service) GAirmets(ctx context.Context, bbox BoundingBox) (*AirmetResponse, error) {
	text, err := s.upstream.FetchText(ctx, "gairmet", GAirmetURL(s.config.APIBaseURL, bbox, s.clock.Now()))
	if err != nil {
		return nil, err
	}
	return ParseGAirmets([]byte(text))
}

// TAF returns the raw terminal aerodrome forecast for a station
func (s *Service) TAF(ctx context.Context, code string) (string, error) {
	q := url.Values{}
	q.Set("ids", stations.NormalizeCode(code))

	text, err := s.upstream.FetchText(ctx, "taf", s.config.APIBaseURL+"/taf?"+q.Encode())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no TAF for %s", ErrNoDataAvailable, code)
	}
	return text, nil
}

// Pireps returns raw pilot reports around a station; an empty result is not an error
func (s *Service) Pireps(ctx context.Context, pq PirepQuery) (string, error) {
	q := url.Values{}
	q.Set("id", stations.NormalizeCode(pq.Station))
	q.Set("distance", strconv.Itoa(pq.Distance))
	q.Set("age", strconv.Itoa(pq.Age))

	return s.upstream.FetchText(ctx, "pirep", s.config.APIBaseURL+"/pirep?"+q.Encode())
}

// WindTemp returns a raw winds/temperatures aloft text product
func (s *Service) WindTemp(ctx context.Context, wq WindTempQuery) (string, error) {
	q := url.Values{}
	q.Set("region", wq.Region)
	q.Set("fcst", wq.Forecast)
	q.Set("level", wq.Level)

	return s.upstream.FetchText(ctx, "windtemp", s.config.APIBaseURL+"/windtemp?"+q.Encode())
}

// GetStats returns cache statistics
func (s *Service) GetStats() map[string]any {
	return map[string]any{
		"winds_aloft":  s.windsAloft.GetStats(),
		"observations": s.observations.GetStats(),
	}
}
