package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iancoleman/orderedmap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/internal/frequencies"
	"github.com/yegors/co-wx/internal/observability"
	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/pkg/logger"
)

var conus = weather.BoundingBox{MinLat: 24, MaxLat: 50, MinLon: -125, MaxLon: -66}

type fakeProvider struct {
	err       error
	lastBBox  weather.BoundingBox
	lastPirep weather.PirepQuery
	lastWT    weather.WindTempQuery
	lastAlt   int
	lastCode  string
}

func (f *fakeProvider) StationWeather(_ context.Context, code string) (*weather.StationWeather, error) {
	f.lastCode = code
	if f.err != nil {
		return nil, f.err
	}
	components := orderedmap.New()
	components.Set("wind", "270 at 10 kts")
	return &weather.StationWeather{MetarData: "KLAX 161853Z 27010KT", MetarComponents: components, FlightRules: "VFR"}, nil
}

func (f *fakeProvider) DewPointSpread(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "Dew Point Spread: 12.0°C", nil
}

func (f *fakeProvider) report(code string, altitude int) (*weather.WindsAloftReport, error) {
	f.lastAlt = altitude
	if f.err != nil {
		return nil, f.err
	}
	return &weather.WindsAloftReport{
		Station:           code,
		DistanceNM:        17.123,
		RequestedAltitude: altitude,
		Altitude:          9000,
		RawCode:           "2815+04",
		Wind:              weather.DecodedWind{Direction: "280", Speed: "15"},
	}, nil
}

func (f *fakeProvider) WindsAloft(_ context.Context, code string, altitude int) (*weather.WindsAloftReport, error) {
	f.lastCode = code
	return f.report("KDEN", altitude)
}

func (f *fakeProvider) WindsAloftAt(_ context.Context, _, _ float64, altitude int) (*weather.WindsAloftReport, error) {
	return f.report("KSEA", altitude)
}

func (f *fakeProvider) Sigmets(_ context.Context, bbox weather.BoundingBox) ([]weather.HazardFeature, error) {
	f.lastBBox = bbox
	if f.err != nil {
		return nil, f.err
	}
	return []weather.HazardFeature{}, nil
}

func (f *fakeProvider) GAirmets(_ context.Context, bbox weather.BoundingBox) (*weather.AirmetResponse, error) {
	f.lastBBox = bbox
	return &weather.AirmetResponse{Components: []weather.GAirmet{}}, f.err
}

func (f *fakeProvider) TAF(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "TAF KDEN 161720Z", nil
}

func (f *fakeProvider) Pireps(_ context.Context, q weather.PirepQuery) (string, error) {
	f.lastPirep = q
	return "UA /OV DEN", f.err
}

func (f *fakeProvider) WindTemp(_ context.Context, q weather.WindTempQuery) (string, error) {
	f.lastWT = q
	return "FD1US1", f.err
}

func (f *fakeProvider) DefaultRegion() weather.BoundingBox {
	return conus
}

type fakeFrequencies struct{}

func (fakeFrequencies) Airport(_ context.Context, code string) (*frequencies.AirportFrequencies, error) {
	if code != "KDEN" {
		return nil, fmt.Errorf("%w: no frequencies published", weather.ErrNoDataAvailable)
	}
	m := orderedmap.New()
	m.Set("DEN TWR", "133.3")
	return &frequencies.AirportFrequencies{Frequencies: m}, nil
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

func newTestRouter(p weather.Provider, inv weather.Invalidator) http.Handler {
	log := logger.NewNop()
	cfg := &config.Config{Server: config.ServerConfig{CORSAllowedOrigins: []string{"https://app.example"}}}
	h := NewHandler(p, fakeFrequencies{}, inv, log)
	return NewRouter(h, cfg, prometheus.NewRegistry(), log).Routes()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetWindsAloftLegacyAndJSON(t *testing.T) {
	p := &fakeProvider{}
	h := newTestRouter(p, nil)

	rec := get(t, h, "/api/v1/getWindsAloft?airportCode=KAPA&altitude=9500")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "280@15@2815+04@KDEN@17.12", rec.Body.String())
	assert.Equal(t, "KAPA", p.lastCode)
	assert.Equal(t, 9500, p.lastAlt)

	rec = get(t, h, "/api/v1/getWindsAloft?airportCode=KAPA&altitude=9500&format=json")
	require.Equal(t, http.StatusOK, rec.Code)

	var report weather.WindsAloftReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "KDEN", report.Station)
	assert.Equal(t, "280", report.Wind.Direction)
}

func TestGetWindsAloftBadParameters(t *testing.T) {
	h := newTestRouter(&fakeProvider{}, nil)

	for _, target := range []string{
		"/api/v1/getWindsAloft?altitude=9000",
		"/api/v1/getWindsAloft?airportCode=KDEN",
		"/api/v1/getWindsAloft?airportCode=KDEN&altitude=high",
		"/api/v1/getWindsAloftByCoords?latitude=95&longitude=0&altitude=3000",
		"/api/v1/getWindsAloftByCoords?latitude=40&altitude=3000",
		"/api/v1/getWindsAloftByCoords?latitude=NaN&longitude=0&altitude=9000",
		"/api/v1/getWindsAloftByCoords?latitude=40&longitude=nan&altitude=9000",
		"/api/v1/getWindsAloftByCoords?latitude=Inf&longitude=0&altitude=9000",
		"/api/v1/getWindsAloftByCoords?latitude=40&longitude=-Infinity&altitude=9000",
		"/api/v1/getAirSigmet?minLat=NaN&maxLat=50&minLon=-125&maxLon=-66",
	} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetWindsAloftByCoords(t *testing.T) {
	h := newTestRouter(&fakeProvider{}, nil)

	rec := get(t, h, "/api/v1/getWindsAloftByCoords?latitude=47.0&longitude=-122.0&altitude=3000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "280@15@2815+04@KSEA@17.12", rec.Body.String())
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: (NaN, 0)", weather.ErrInvalidCoordinate), http.StatusBadRequest},
		{fmt.Errorf("%w: QQQQ", weather.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: no metar", weather.ErrNoDataAvailable), http.StatusNotFound},
		{fmt.Errorf("%w: timeout", weather.ErrUpstreamUnavailable), http.StatusBadGateway},
		{fmt.Errorf("%w: bad json", weather.ErrMalformedUpstreamData), http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		h := newTestRouter(&fakeProvider{err: tc.err}, nil)
		rec := get(t, h, "/api/v1/getAirportWeather?airportCode=KDEN")
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())

		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.Error)
	}

	notFound := get(t, newTestRouter(&fakeProvider{err: weather.ErrNotFound}, nil), "/api/v1/getTAF?icao=QQQQ")
	noData := get(t, newTestRouter(&fakeProvider{err: weather.ErrNoDataAvailable}, nil), "/api/v1/getTAF?icao=KDEN")
	assert.NotEqual(t, notFound.Body.String(), noData.Body.String())
}

func TestGetAirportWeather(t *testing.T) {
	h := newTestRouter(&fakeProvider{}, nil)

	rec := get(t, h, "/api/v1/getAirportWeather?airportCode=KLAX")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"metar_data":"KLAX 161853Z 27010KT","metar_components":{"wind":"270 at 10 kts"},"flight_rules":"VFR"}`, rec.Body.String())
}

func TestGetAirSigmetRegion(t *testing.T) {
	p := &fakeProvider{}
	h := newTestRouter(p, nil)

	rec := get(t, h, "/api/v1/getAirSigmet")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, conus, p.lastBBox)

	rec = get(t, h, "/api/v1/getAirSigmet?minLat=30&maxLat=40&minLon=-110&maxLon=-100")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, weather.BoundingBox{MinLat: 30, MaxLat: 40, MinLon: -110, MaxLon: -100}, p.lastBBox)

	rec = get(t, h, "/api/v1/getAirSigmet?minLat=30")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, h, "/api/v1/getAirSigmet?minLat=40&maxLat=30&minLon=-110&maxLon=-100")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetGAirmet(t *testing.T) {
	p := &fakeProvider{}
	h := newTestRouter(p, nil)

	rec := get(t, h, "/api/v1/getGAirmet?southLat=30&westLon=-120&northLat=45&eastLon=-100")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, weather.BoundingBox{MinLat: 30, MaxLat: 45, MinLon: -120, MaxLon: -100}, p.lastBBox)
	assert.JSONEq(t, `{"airmet_results":0,"airmet_components":[]}`, rec.Body.String())
}

func TestTextEndpoints(t *testing.T) {
	p := &fakeProvider{}
	h := newTestRouter(p, nil)

	rec := get(t, h, "/api/v1/getTAF?icao=KDEN")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TAF KDEN 161720Z", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = get(t, h, "/api/v1/getDewPointSpread?icao=KDEN")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Dew Point Spread: 12.0°C", rec.Body.String())

	rec = get(t, h, "/api/v1/getPireps?icao=KDEN&distance=50&age=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, weather.PirepQuery{Station: "KDEN", Distance: 50, Age: 2}, p.lastPirep)

	rec = get(t, h, "/api/v1/getWindTemp?region=all&forcast=06&level=low")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, weather.WindTempQuery{Region: "all", Forecast: "06", Level: "low"}, p.lastWT)

	rec = get(t, h, "/api/v1/getPireps?icao=KDEN&distance=50")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAirportFrequencies(t *testing.T) {
	h := newTestRouter(&fakeProvider{}, nil)

	rec := get(t, h, "/api/v1/getAirportFrequencies?airportCode=KDEN")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"frequencies":{"DEN TWR":"133.3"}}`, rec.Body.String())

	rec = get(t, h, "/api/v1/getAirportFrequencies?airportCode=KXYZ")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidateWindsAloft(t *testing.T) {
	inv := &countingInvalidator{}
	h := newTestRouter(&fakeProvider{}, inv)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/windsAloft/invalidate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, inv.n)

	rec = httptest.NewRecorder()
	newTestRouter(&fakeProvider{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/windsAloft/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	log := logger.NewNop()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	metrics.CacheHit("observations")

	h := NewRouter(NewHandler(&fakeProvider{}, nil, nil, log), &config.Config{}, reg, log).Routes()

	rec := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "co_wx_cache_lookups_total")
}

func TestCORS(t *testing.T) {
	h := newTestRouter(&fakeProvider{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/getTAF?icao=KDEN", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/getTAF?icao=KDEN", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
