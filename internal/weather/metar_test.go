package weather

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/iancoleman/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const klaxMETAR = `{
  "results": 1,
  "data": [{
    "icao": "KLAX",
    "raw_text": "KLAX 161853Z 27010KT 10SM CLR 21/09 A2992",
    "flight_category": "VFR",
    "wind": {"degrees": 270, "speed_kts": 10, "gust_kts": 0},
    "visibility": {"miles": "10"},
    "clouds": [{"code": "CLR"}],
    "temperature": {"fahrenheit": "70", "celsius": "21"}
  }]
}`

const kdenMETAR = `{
  "results": 1,
  "data": [{
    "raw_text": "KDEN 161853Z 18012G22KT 10SM FEW080 BKN200 15/M01 A3001",
    "flight_category": "VFR",
    "wind": {"degrees": 180, "speed_kts": 12, "gust_kts": 22},
    "visibility": {"miles": 10, "meters": "16,093"},
    "clouds": [{"code": "FEW", "feet": 8000}, {"code": "BKN"}],
    "temperature": {"fahrenheit": 59, "celsius": 15},
    "dewpoint": {"fahrenheit": 30.2, "celsius": -1},
    "barometer": {"hg": 30.01, "mb": 1016},
    "humidity": {"percent": 33},
    "elevation": {"feet": 3000, "meters": 914},
    "station": null
  }]
}`

func TestDecomposeKLAXOrderingAndSparseClouds(t *testing.T) {
	wx, err := Decompose([]byte(klaxMETAR))
	require.NoError(t, err)

	assert.Equal(t, "KLAX 161853Z 27010KT 10SM CLR 21/09 A2992", wx.MetarData)
	assert.Equal(t, "VFR", wx.FlightRules)
	assert.Equal(t, []string{"wind", "visibility", "clouds", "temperature", "density_altitude"}, wx.MetarComponents.Keys())

	wind, _ := wx.MetarComponents.Get("wind")
	assert.Equal(t, "270 at 10 kts", wind)
	vis, _ := wx.MetarComponents.Get("visibility")
	assert.Equal(t, "10 SM", vis)
	temp, _ := wx.MetarComponents.Get("temperature")
	assert.Equal(t, "70 degrees F, 21 degrees C", temp)

	// No elevation reported
	da, _ := wx.MetarComponents.Get("density_altitude")
	assert.Equal(t, NotAvailable, da)

	out, err := json.Marshal(wx)
	require.NoError(t, err)

	var decoded struct {
		Components struct {
			Clouds []map[string]any `json:"clouds"`
		} `json:"metar_components"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Len(t, decoded.Components.Clouds, 1)
	assert.Equal(t, map[string]any{"code": "CLR"}, decoded.Components.Clouds[0])
	assert.NotContains(t, decoded.Components.Clouds[0], "feet")
}

func TestDecomposeFullRecord(t *testing.T) {
	wx, err := Decompose([]byte(kdenMETAR))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"wind", "visibility", "clouds", "temperature", "dewpoint",
		"barometer", "humidity", "elevation", "density_altitude",
	}, wx.MetarComponents.Keys())

	get := func(k string) any {
		v, ok := wx.MetarComponents.Get(k)
		require.True(t, ok, k)
		return v
	}

	assert.Equal(t, "180 at 12-22 kts", get("wind"))
	assert.Equal(t, "10 SM", get("visibility"))
	assert.Equal(t, []CloudLayer{{Code: "FEW", Feet: "8000"}, {Code: "BKN", Feet: "Unknown"}}, get("clouds"))
	assert.Equal(t, "59 degrees F, 15 degrees C", get("temperature"))
	assert.Equal(t, "30.2 degrees F, -1 degrees C", get("dewpoint"))
	assert.Equal(t, "hg: 30.01", get("barometer"))
	assert.Equal(t, "33 %", get("humidity"))
	assert.Equal(t, "3000", get("elevation"))
	assert.Equal(t, 3720, get("density_altitude"))

	assert.Equal(t, "Dew Point Spread: 16.0°C", DewPointSpread(wx.MetarComponents))
}

func TestDecomposeJSONKeepsComponentOrder(t *testing.T) {
	wx, err := Decompose([]byte(kdenMETAR))
	require.NoError(t, err)

	out, err := json.Marshal(wx)
	require.NoError(t, err)

	s := string(out)
	assert.Less(t, strings.Index(s, `"wind"`), strings.Index(s, `"visibility"`))
	assert.Less(t, strings.Index(s, `"elevation"`), strings.Index(s, `"density_altitude"`))
	assert.Less(t, strings.Index(s, `"metar_data"`), strings.Index(s, `"flight_rules"`))
}

func TestDecomposeErrors(t *testing.T) {
	_, err := Decompose([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedUpstreamData)

	_, err = Decompose([]byte(`{"results":0,"data":[]}`))
	assert.ErrorIs(t, err, ErrNoDataAvailable)

	_, err = Decompose([]byte(`{"results":1,"data":["KXXX Invalid Station"]}`))
	assert.ErrorIs(t, err, ErrMalformedUpstreamData)

	_, err = Decompose([]byte(`{"data":[{"wind":"calm"}]}`))
	assert.ErrorIs(t, err, ErrMalformedUpstreamData)
}

func TestDecomposeSparseOmitsEmptyFields(t *testing.T) {
	wx, err := Decompose([]byte(`{"data":[{"wind":null}]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"density_altitude"}, wx.MetarComponents.Keys())

	out, err := json.Marshal(wx)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "metar_data")
	assert.NotContains(t, string(out), "flight_rules")
}

func TestComputeDensityAltitude(t *testing.T) {
	da, ok := ComputeDensityAltitude("3000", "59 degrees F, 15 degrees C")
	require.True(t, ok)
	assert.Equal(t, 3720, da)

	_, ok = ComputeDensityAltitude("", "59 degrees F, 15 degrees C")
	assert.False(t, ok)
	_, ok = ComputeDensityAltitude("3000", "")
	assert.False(t, ok)
	_, ok = ComputeDensityAltitude("3000", " degrees F,  degrees C")
	assert.False(t, ok)
}

func TestDewPointSpreadFailures(t *testing.T) {
	m := orderedmap.New()
	assert.Equal(t, "dew point spread N/A: temperature missing", DewPointSpread(m))

	m.Set("temperature", "70 degrees F, 21 degrees C")
	assert.Equal(t, "dew point spread N/A: dewpoint missing", DewPointSpread(m))

	m.Set("dewpoint", "48 degrees F, abc degrees C")
	assert.Contains(t, DewPointSpread(m), "dew point spread N/A")

	m.Set("dewpoint", "48 degrees F, 9 degrees C")
	assert.Equal(t, "Dew Point Spread: 12.0°C", DewPointSpread(m))
}
