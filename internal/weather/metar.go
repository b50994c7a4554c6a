package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/iancoleman/orderedmap"

	"github.com/yegors/co-wx/internal/physics"
)

// Component keys in emission order
const (
	ComponentWind            = "wind"
	ComponentVisibility      = "visibility"
	ComponentClouds          = "clouds"
	ComponentTemperature     = "temperature"
	ComponentDewpoint        = "dewpoint"
	ComponentBarometer       = "barometer"
	ComponentHumidity        = "humidity"
	ComponentElevation       = "elevation"
	ComponentDensityAltitude = "density_altitude"
)

// StationWeather is the decomposed observation for one station.
// Components must be treated as read-only once returned.
type StationWeather struct {
	MetarData       string                 `json:"metar_data,omitempty"`
	MetarComponents *orderedmap.OrderedMap `json:"metar_components,omitempty"`
	FlightRules     string                 `json:"flight_rules,omitempty"`
}

// CloudLayer is one reported sky condition layer
type CloudLayer struct {
	Code string `json:"code"`
	Feet string `json:"feet,omitempty"`
}

// componentDecoder decodes one upstream field into a component value
type componentDecoder struct {
	key    string
	decode func(json.RawMessage) (any, error)
}

// componentDecoders is iterated in order; the order is part of the response contract
var componentDecoders = []componentDecoder{
	{ComponentWind, decodeWind},
	{ComponentVisibility, decodeVisibility},
	{ComponentClouds, decodeClouds},
	{ComponentTemperature, decodeTemperature},
	{ComponentDewpoint, decodeTemperature},
	{ComponentBarometer, decodeBarometer},
	{ComponentHumidity, decodeHumidity},
	{ComponentElevation, decodeElevation},
}

// Decompose splits a decoded-METAR JSON response into its components.
// The first entry of "data" is used.
func Decompose(raw []byte) (*StationWeather, error) {
	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: metar response: %v", ErrMalformedUpstreamData, err)
	}
	if len(envelope.Data) == 0 {
		return nil, fmt.Errorf("%w: metar response has no observations", ErrNoDataAvailable)
	}

	var record map[string]json.RawMessage
	if err := json.Unmarshal(envelope.Data[0], &record); err != nil || record == nil {
		return nil, fmt.Errorf("%w: metar observation is not an object", ErrMalformedUpstreamData)
	}

	components := orderedmap.New()
	for _, d := range componentDecoders {
		v, ok := record[d.key]
		if !ok || isNull(v) {
			continue
		}
		value, err := d.decode(v)
		if err != nil {
			return nil, fmt.Errorf("%w: metar %s: %v", ErrMalformedUpstreamData, d.key, err)
		}
		components.Set(d.key, value)
	}
	components.Set(ComponentDensityAltitude, densityAltitudeComponent(components))

	var rawText, category flexString
	if v, ok := record["raw_text"]; ok {
		if err := json.Unmarshal(v, &rawText); err != nil {
			return nil, fmt.Errorf("%w: metar raw_text: %v", ErrMalformedUpstreamData, err)
		}
	}
	if v, ok := record["flight_category"]; ok {
		if err := json.Unmarshal(v, &category); err != nil {
			return nil, fmt.Errorf("%w: metar flight_category: %v", ErrMalformedUpstreamData, err)
		}
	}

	return &StationWeather{
		MetarData:       string(rawText),
		MetarComponents: components,
		FlightRules:     string(category),
	}, nil
}

func decodeWind(raw json.RawMessage) (any, error) {
	var w struct {
		Degrees flexInt `json:"degrees"`
		Speed   flexInt `json:"speed_kts"`
		Gust    flexInt `json:"gust_kts"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if w.Gust > 0 {
		return fmt.Sprintf("%d at %d-%d kts", w.Degrees, w.Speed, w.Gust), nil
	}
	return fmt.Sprintf("%d at %d kts", w.Degrees, w.Speed), nil
}

func decodeVisibility(raw json.RawMessage) (any, error) {
	var v struct {
		Miles flexString `json:"miles"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return string(v.Miles) + " SM", nil
}

func decodeClouds(raw json.RawMessage) (any, error) {
	var layers []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &layers); err != nil {
		return nil, err
	}

	clouds := make([]CloudLayer, 0, len(layers))
	for _, l := range layers {
		code := optString(l, "code", "Unknown")
		layer := CloudLayer{Code: code}
		// Clear sky has no ceiling
		if !strings.EqualFold(code, "CLR") {
			layer.Feet = optString(l, "feet", "Unknown")
		}
		clouds = append(clouds, layer)
	}
	return clouds, nil
}

func decodeTemperature(raw json.RawMessage) (any, error) {
	var t struct {
		Fahrenheit flexString `json:"fahrenheit"`
		Celsius    flexString `json:"celsius"`
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return fmt.Sprintf("%s degrees F, %s degrees C", t.Fahrenheit, t.Celsius), nil
}

func decodeBarometer(raw json.RawMessage) (any, error) {
	var b struct {
		Hg flexString `json:"hg"`
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	return "hg: " + string(b.Hg), nil
}

func decodeHumidity(raw json.RawMessage) (any, error) {
	var h struct {
		Percent flexString `json:"percent"`
	}
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, err
	}
	return string(h.Percent) + " %", nil
}

func decodeElevation(raw json.RawMessage) (any, error) {
	var e struct {
		Feet flexString `json:"feet"`
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return string(e.Feet), nil
}

// densityAltitudeComponent returns whole feet, or N/A when elevation or temperature is missing
func densityAltitudeComponent(components *orderedmap.OrderedMap) any {
	elevation, _ := componentString(components, ComponentElevation)
	temperature, _ := componentString(components, ComponentTemperature)

	if da, ok := ComputeDensityAltitude(elevation, temperature); ok {
		return da
	}
	return NotAvailable
}

// ComputeDensityAltitude derives density altitude in whole feet from a station
// elevation ("5434") and a formatted temperature ("59 degrees F, 15 degrees C").
// Station elevation stands in for pressure altitude.
func ComputeDensityAltitude(elevation, temperature string) (int, bool) {
	alt, err := strconv.ParseFloat(strings.TrimSpace(elevation), 64)
	if err != nil {
		return 0, false
	}

	fields := strings.Fields(temperature)
	if len(fields) == 0 {
		return 0, false
	}
	degF, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}

	da := physics.DensityAltitude(alt, physics.FahrenheitToCelsius(degF))
	return int(math.Round(da)), true
}

// DewPointSpread returns "Dew Point Spread: X.X°C" from the temperature and
// dewpoint components, or an explanatory N/A string
func DewPointSpread(components *orderedmap.OrderedMap) string {
	temp, err := celsiusComponent(components, ComponentTemperature)
	if err != nil {
		return "dew point spread N/A: " + err.Error()
	}
	dew, err := celsiusComponent(components, ComponentDewpoint)
	if err != nil {
		return "dew point spread N/A: " + err.Error()
	}
	return fmt.Sprintf("Dew Point Spread: %.1f°C", temp-dew)
}

// celsiusComponent parses the figure after the comma in "F degrees F, C degrees C"
func celsiusComponent(components *orderedmap.OrderedMap, key string) (float64, error) {
	s, ok := componentString(components, key)
	if !ok {
		return 0, fmt.Errorf("%s missing", key)
	}

	_, after, found := strings.Cut(s, ",")
	if !found || !strings.Contains(after, "degrees C") {
		return 0, fmt.Errorf("%s has no celsius value", key)
	}

	fields := strings.Fields(after)
	c, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%s celsius value %q is not numeric", key, fields[0])
	}
	return c, nil
}

func componentString(components *orderedmap.OrderedMap, key string) (string, bool) {
	if components == nil {
		return "", false
	}
	v, ok := components.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func optString(obj map[string]json.RawMessage, key, def string) string {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return def
	}
	var s flexString
	if err := json.Unmarshal(raw, &s); err != nil {
		return def
	}
	return string(s)
}

// flexString accepts a JSON string, number or boolean and keeps its text.
// null decodes to "".
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("expected scalar, got %s", b[:1])
	default:
		*f = flexString(b)
	}
	return nil
}

// flexInt accepts a JSON number or numeric string; anything else decodes to 0
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}
