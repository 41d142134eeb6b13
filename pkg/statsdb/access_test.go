package statsdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/statistics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "statistics.db"))
	require.NoError(t, err)
	store.InitializeDatabase()
	t.Cleanup(func() { store.Close() })
	return store
}

func testMeta() statistics.Metadata {
	return statistics.Metadata{
		StatisticID: "sensor.electric_meter_123",
		Name:        "ELECTRIC Meter 123",
		Source:      "recorder",
		Unit:        "kWh",
		HasSum:      true,
	}
}

func at(h int) time.Time {
	return time.Date(2024, 3, 1, h, 0, 0, 0, statistics.Brunei)
}

func TestStatisticsUnknownIsEmpty(t *testing.T) {
	store := openTestStore(t)

	records, err := store.Statistics(context.Background(), "sensor.nope")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	meta, err := store.Metadata(context.Background(), "sensor.nope")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestImportIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	records := []statistics.Record{
		{Start: at(1), State: 2, Sum: 3},
		{Start: at(0), State: 1, Sum: 1},
	}

	require.NoError(t, store.Import(ctx, testMeta(), records))
	require.NoError(t, store.Import(ctx, testMeta(), records))

	got, err := store.Statistics(ctx, testMeta().StatisticID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Start.Equal(at(0)))
	assert.Equal(t, 1.0, got[0].Sum)
	assert.True(t, got[1].Start.Equal(at(1)))
	assert.Equal(t, statistics.Brunei, got[1].Start.Location())
	assert.Equal(t, 3.0, got[1].Sum)
}

func TestImportOverwritesRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Import(ctx, testMeta(), []statistics.Record{{Start: at(0), State: 1, Sum: 1}}))
	require.NoError(t, store.Import(ctx, testMeta(), []statistics.Record{{Start: at(0), State: 4, Sum: 4}}))

	got, err := store.Statistics(ctx, testMeta().StatisticID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4.0, got[0].State)
	assert.Equal(t, 4.0, got[0].Sum)
}

func TestImportUpdatesMetadata(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Import(ctx, testMeta(), nil))
	renamed := testMeta()
	renamed.Name = "Renamed"
	require.NoError(t, store.Import(ctx, renamed, nil))

	meta, err := store.Metadata(ctx, renamed.StatisticID)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, renamed, *meta)
}

func TestStatisticsAreKeptPerStatistic(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	water := testMeta()
	water.StatisticID = "sensor.water_meter_9"
	water.Unit = "m³"

	require.NoError(t, store.Import(ctx, testMeta(), []statistics.Record{{Start: at(0), State: 1, Sum: 1}}))
	require.NoError(t, store.Import(ctx, water, []statistics.Record{{Start: at(0), State: 9, Sum: 9}, {Start: at(1), State: 1, Sum: 10}}))

	electric, err := store.Statistics(ctx, testMeta().StatisticID)
	require.NoError(t, err)
	assert.Len(t, electric, 1)

	waterRows, err := store.Statistics(ctx, water.StatisticID)
	require.NoError(t, err)
	assert.Len(t, waterRows, 2)
}
