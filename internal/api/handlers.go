package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yegors/co-wx/internal/frequencies"
	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/pkg/logger"
)

// FrequencyLookup resolves published airport frequencies
type FrequencyLookup interface {
	Airport(ctx context.Context, code string) (*frequencies.AirportFrequencies, error)
}

// Handler contains the API handlers
type Handler struct {
	weather     weather.Provider
	frequencies FrequencyLookup
	invalidator weather.Invalidator
	started     time.Time
	logger      *logger.Logger
}

// NewHandler creates a new API handler. frequencyLookup and invalidator may be nil.
func NewHandler(provider weather.Provider, frequencyLookup FrequencyLookup, invalidator weather.Invalidator, log *logger.Logger) *Handler {
	return &Handler{
		weather:     provider,
		frequencies: frequencyLookup,
		invalidator: invalidator,
		started:     time.Now(),
		logger:      log.Named("api-handler"),
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	}
	if sr, ok := h.weather.(interface{ GetStats() map[string]any }); ok {
		response["caches"] = sr.GetStats()
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetAirportWeather returns the decomposed current observation for airportCode
func (h *Handler) GetAirportWeather(w http.ResponseWriter, r *http.Request) {
	code, err := requiredString(r, "airportCode")
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	wx, err := h.weather.StationWeather(r.Context(), code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, wx)
}

// GetWindsAloft returns the winds-aloft forecast for airportCode at altitude.
// The legacy "@"-delimited string is the default; format=json returns the structured report.
func (h *Handler) GetWindsAloft(w http.ResponseWriter, r *http.Request) {
	code, err := requiredString(r, "airportCode")
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	altitude, err := requiredInt(r, "altitude")
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	report, err := h.weather.WindsAloft(r.Context(), code, altitude)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeWindsAloft(w, r, report)
}

// GetWindsAloftByCoords returns the forecast from the publishing station nearest to a coordinate
func (h *Handler) GetWindsAloftByCoords(w http.ResponseWriter, r *http.Request) {
	lat, err := requiredFloat(r, "latitude")
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	lon, err := requiredFloat(r, "longitude")
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		h.writeBadRequest(w, fmt.Errorf("coordinate out of range: %v, %v", lat, lon))
		return
	}
	altitude, err := requiredInt(r, "altitude")
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	report, err := h.weather.WindsAloftAt(r.Context(), lat, lon, altitude)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeWindsAloft(w, r, report)
}

func writeWindsAloft(w http.ResponseWriter, r *http.Request, report *weather.WindsAloftReport) {
	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		WriteJSON(w, http.StatusOK, report)
		return
	}
	WriteText(w, http.StatusOK, report.Legacy())
}

// GetDewPointSpread returns the temperature/dew point spread for icao
func (h *Handler) GetDewPointSpread(w http.ResponseWriter, r *http.Request) {
	code, err := requiredString(r, "icao")
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	spread, err := h.weather.DewPointSpread(r.Context(), code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteText(w, http.StatusOK, spread)
}

// GetAirSigmet returns SIGMETs with a vertex inside the default region,
// or inside minLat/maxLat/minLon/maxLon when all four are given
func (h *Handler) GetAirSigmet(w http.ResponseWriter, r *http.Request) {
	bbox := h.weather.DefaultRegion()

	q := r.URL.Query()
	if q.Has("minLat") || q.Has("maxLat") || q.Has("minLon") || q.Has("maxLon") {
		var err error
		bbox, err = boundingBox(r, "minLat", "maxLat", "minLon", "maxLon")
		if err != nil {
			h.writeBadRequest(w, err)
			return
		}
	}

	features, err := h.weather.Sigmets(r.Context(), bbox)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, features)
}

// GetGAirmet returns today's G-AIRMETs inside the requested box
func (h *Handler) GetGAirmet(w http.ResponseWriter, r *http.Request) {
	bbox, err := boundingBox(r, "southLat", "northLat", "westLon", "eastLon")
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	resp, err := h.weather.GAirmets(r.Context(), bbox)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetTAF returns the raw TAF for icao
func (h *Handler) GetTAF(w http.ResponseWriter, r *http.Request) {
	code, err := requiredString(r, "icao")
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	taf, err := h.weather.TAF(r.Context(), code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteText(w, http.StatusOK, taf)
}

// GetPireps returns raw pilot reports within distance of icao and newer than age hours
func (h *Handler) GetPireps(w http.ResponseWriter, r *http.Request) {
	code, err := requiredString(r, "icao")
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	distance, err := requiredInt(r, "distance")
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	age, err := requiredInt(r, "age")
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	pireps, err := h.weather.Pireps(r.Context(), weather.PirepQuery{Station: code, Distance: distance, Age: age})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteText(w, http.StatusOK, pireps)
}

// GetWindTemp returns a raw winds/temperatures aloft product
func (h *Handler) GetWindTemp(w http.ResponseWriter, r *http.Request) {
	var q weather.WindTempQuery
	var err error
	if q.Region, err = requiredString(r, "region"); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	if q.Forecast, err = requiredString(r, "forcast"); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	if q.Level, err = requiredString(r, "level"); err != nil {
		h.writeBadRequest(w, err)
		return
	}

	text, err := h.weather.WindTemp(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteText(w, http.StatusOK, text)
}

// GetAirportFrequencies returns the published frequencies for airportCode
func (h *Handler) GetAirportFrequencies(w http.ResponseWriter, r *http.Request) {
	if h.frequencies == nil {
		WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "frequency lookup not configured"})
		return
	}

	code, err := requiredString(r, "airportCode")
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	freqs, err := h.frequencies.Airport(r.Context(), code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, freqs)
}

// InvalidateWindsAloft discards the cached winds-aloft table
func (h *Handler) InvalidateWindsAloft(w http.ResponseWriter, r *http.Request) {
	if h.invalidator == nil {
		WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "winds aloft cache not available"})
		return
	}

	h.invalidator.Invalidate()
	h.logger.Info("Winds aloft table invalidated via API")
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, err error) {
	WriteJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// writeError maps domain errors onto HTTP status codes
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, weather.ErrInvalidCoordinate):
		status, message = http.StatusBadRequest, "invalid coordinate"
	case errors.Is(err, weather.ErrNotFound):
		status, message = http.StatusNotFound, "station not found"
	case errors.Is(err, weather.ErrNoDataAvailable):
		status, message = http.StatusNotFound, "no data available"
	case errors.Is(err, weather.ErrUpstreamUnavailable):
		status, message = http.StatusBadGateway, "upstream unavailable"
	case errors.Is(err, weather.ErrMalformedUpstreamData):
		status, message = http.StatusBadGateway, "malformed upstream data"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			logger.String("path", r.URL.Path),
			logger.String("query", r.URL.RawQuery),
			logger.Int("status", status),
			logger.Error(err))
	} else {
		h.logger.Debug("Request returned no result",
			logger.String("path", r.URL.Path),
			logger.String("query", r.URL.RawQuery),
			logger.Error(err))
	}

	WriteJSON(w, status, errorResponse{Error: fmt.Sprintf("%s: %v", message, err)})
}

func requiredString(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", fmt.Errorf("missing required parameter %q", name)
	}
	return v, nil
}

func requiredInt(r *http.Request, name string) (int, error) {
	raw, err := requiredString(r, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %q must be an integer: %q", name, raw)
	}
	return v, nil
}

func requiredFloat(r *http.Request, name string) (float64, error) {
	raw, err := requiredString(r, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parameter %q must be a finite number: %q", name, raw)
	}
	return v, nil
}

func boundingBox(r *http.Request, minLat, maxLat, minLon, maxLon string) (weather.BoundingBox, error) {
	var bbox weather.BoundingBox
	var err error

	if bbox.MinLat, err = requiredFloat(r, minLat); err != nil {
		return bbox, err
	}
	if bbox.MaxLat, err = requiredFloat(r, maxLat); err != nil {
		return bbox, err
	}
	if bbox.MinLon, err = requiredFloat(r, minLon); err != nil {
		return bbox, err
	}
	if bbox.MaxLon, err = requiredFloat(r, maxLon); err != nil {
		return bbox, err
	}
	if !bbox.Valid() {
		return bbox, fmt.Errorf("invalid bounding box: lat [%v,%v] lon [%v,%v]", bbox.MinLat, bbox.MaxLat, bbox.MinLon, bbox.MaxLon)
	}
	return bbox, nil
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// WriteText writes a plain text response
func WriteText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
