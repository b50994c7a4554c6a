package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-wx/internal/stations"
	"github.com/yegors/co-wx/pkg/logger"
)

const airportsCSV = `"id","ident","type","name","latitude_deg","longitude_deg","elevation_ft","continent"
3632,"KLAX","large_airport","Los Angeles International Airport",33.942501,-118.407997,125,"NA"
3622,"KJFK","large_airport","John F Kennedy International Airport",40.639447,-73.779317,13,"NA"
3384,"KDEN","large_airport","Denver International Airport",39.861698,-104.672997,5434,"NA"
9999,"XBAD","heliport","Broken Row",,,"","NA"
8888,"XNOELEV","small_airport","No Elevation",10.5,20.25,"","NA"
`

func newTestStorage(t *testing.T) *StationStorage {
	t.Helper()

	store, err := NewStationStorage(filepath.Join(t.TempDir(), "stations.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestImportAirportsCSV(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	n, err := store.ImportAirportsCSV(ctx, strings.NewReader(airportsCSV))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	lax, err := store.Lookup(ctx, " klax ")
	require.NoError(t, err)
	assert.Equal(t, "KLAX", lax.Code)
	assert.Equal(t, "Los Angeles International Airport", lax.Name)
	assert.InDelta(t, 33.942501, lax.Latitude, 1e-9)
	require.NotNil(t, lax.ElevationFeet)
	assert.Equal(t, 125, *lax.ElevationFeet)
	assert.False(t, lax.PublishesWindsAloft)

	noElev, err := store.Lookup(ctx, "XNOELEV")
	require.NoError(t, err)
	assert.Nil(t, noElev.ElevationFeet)
}

func TestImportAirportsCSVMissingColumn(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.ImportAirportsCSV(context.Background(), strings.NewReader("ident,name\nKLAX,LAX\n"))
	assert.Error(t, err)
}

func TestLookupUnknownStation(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.Lookup(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, stations.ErrNotFound)
}

func TestImportWindsAloftListAndAllOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	_, err := store.ImportAirportsCSV(ctx, strings.NewReader(airportsCSV))
	require.NoError(t, err)

	list := "# FD stations\nKLAX\nkden # Denver\n\nKSEA\n"
	flagged, err := store.ImportWindsAloftList(ctx, strings.NewReader(list))
	require.NoError(t, err)
	assert.Equal(t, 2, flagged)

	all, err := store.All(ctx)
	require.NoError(t, err)

	var codes []string
	publishing := map[string]bool{}
	for _, st := range all {
		codes = append(codes, st.Code)
		publishing[st.Code] = st.PublishesWindsAloft
	}
	assert.Equal(t, []string{"KDEN", "KJFK", "KLAX", "XNOELEV"}, codes)
	assert.True(t, publishing["KLAX"])
	assert.True(t, publishing["KDEN"])
	assert.False(t, publishing["KJFK"])
}

func TestUpsertKeepsWindsAloftFlag(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	elev := 433
	require.NoError(t, store.Upsert(ctx, stations.Station{
		Code: "KSEA", Name: "Seattle", Latitude: 47.449, Longitude: -122.309,
		ElevationFeet: &elev, PublishesWindsAloft: true,
	}))
	require.NoError(t, store.Upsert(ctx, stations.Station{
		Code: "KSEA", Name: "Seattle-Tacoma", Latitude: 47.449, Longitude: -122.309,
	}))

	sea, err := store.Lookup(ctx, "KSEA")
	require.NoError(t, err)
	assert.Equal(t, "Seattle-Tacoma", sea.Name)
	assert.True(t, sea.PublishesWindsAloft)
	assert.Nil(t, sea.ElevationFeet)
}
