package aggregate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/devicepulse/backend/internal/model"
	"github.com/devicepulse/backend/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, *storage.MeasurementStore, *model.Device) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))

	device := &model.Device{Name: "pump-7", Status: model.StatusActive}
	require.NoError(t, storage.NewDeviceStore(db).Create(context.Background(), device))

	store := storage.NewMeasurementStore(db)
	return NewEngine(store), store, device
}

func insert(t *testing.T, store *storage.MeasurementStore, deviceID uint, metric, value string, ts time.Time) {
	t.Helper()
	v, err := decimal.NewFromString(value)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), &model.Measurement{
		DeviceID: deviceID, Metric: metric, Value: v, Unit: "u", Timestamp: ts,
	}))
}

func TestParsePeriod(t *testing.T) {
	for _, s := range []string{"", "last_24h", "last_7d", "last_30d", "all"} {
		p, err := ParsePeriod(s)
		require.NoError(t, err, s)
		if s == "" {
			assert.Equal(t, PeriodAll, p)
		}
	}
	_, err := ParsePeriod("last_hour")
	require.Error(t, err)
}

func TestPeriodSince(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Nil(t, PeriodAll.Since(now))
	assert.Equal(t, now.Add(-24*time.Hour), *PeriodLast24h.Since(now))
	assert.Equal(t, now.Add(-7*24*time.Hour), *PeriodLast7d.Since(now))
	assert.Equal(t, now.Add(-30*24*time.Hour), *PeriodLast30d.Since(now))
}

func TestAggregateTruncatesBeforeStats(t *testing.T) {
	engine, store, device := newTestEngine(t)
	base := time.Now().UTC().Add(-time.Hour)

	// 150 points valued 0..149, oldest first. Newest-first truncation at the
	// default limit keeps exactly values 50..149.
	for i := 0; i < 150; i++ {
		insert(t, store, device.ID, "temperature", fmt.Sprint(i), base.Add(time.Duration(i)*time.Second))
	}

	res, err := engine.Aggregate(context.Background(), device.ID, "", PeriodAll, 0)
	require.NoError(t, err)
	require.Equal(t, DefaultLimit, res.Count)
	require.Len(t, res.Measurements, DefaultLimit)
	assert.True(t, res.Measurements[0].Value.Equal(decimal.NewFromInt(149)))
	assert.True(t, res.Measurements[DefaultLimit-1].Value.Equal(decimal.NewFromInt(50)))

	require.NotNil(t, res.Statistics.Mean)
	assert.InDelta(t, 99.5, *res.Statistics.Mean, 1e-9)
	assert.Equal(t, 149.0, *res.Statistics.Max)
	assert.Equal(t, 50.0, *res.Statistics.Min)
}

func TestAggregateEmptyResult(t *testing.T) {
	engine, _, device := newTestEngine(t)

	res, err := engine.Aggregate(context.Background(), device.ID, "", PeriodAll, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.NotNil(t, res.Measurements)
	assert.Empty(t, res.Measurements)
	assert.Nil(t, res.Statistics.Mean)
	assert.Nil(t, res.Statistics.Max)
	assert.Nil(t, res.Statistics.Min)
}

func TestAggregateMetricFilterCaseInsensitive(t *testing.T) {
	engine, store, device := newTestEngine(t)
	now := time.Now().UTC()
	insert(t, store, device.ID, "Temperature", "20", now.Add(-time.Minute))
	insert(t, store, device.ID, "humidity", "55", now.Add(-2*time.Minute))

	res, err := engine.Aggregate(context.Background(), device.ID, "temperature", PeriodAll, 0)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "Temperature", res.Measurements[0].Metric)
	assert.Equal(t, 20.0, *res.Statistics.Mean)
}

func TestAggregatePeriodWindow(t *testing.T) {
	engine, store, device := newTestEngine(t)
	now := time.Now().UTC()
	insert(t, store, device.ID, "temperature", "1", now.Add(-2*time.Hour))
	insert(t, store, device.ID, "temperature", "2", now.Add(-48*time.Hour))
	insert(t, store, device.ID, "temperature", "3", now.Add(-10*24*time.Hour))

	res, err := engine.Aggregate(context.Background(), device.ID, "", PeriodLast24h, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	res, err = engine.Aggregate(context.Background(), device.ID, "", PeriodLast7d, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	res, err = engine.Aggregate(context.Background(), device.ID, "", PeriodAll, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
}

func TestAggregateLimitClamp(t *testing.T) {
	engine, store, device := newTestEngine(t)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		insert(t, store, device.ID, "temperature", "1", now.Add(time.Duration(-i)*time.Minute))
	}

	res, err := engine.Aggregate(context.Background(), device.ID, "", PeriodAll, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	// Oversized limits are clamped, not rejected.
	res, err = engine.Aggregate(context.Background(), device.ID, "", PeriodAll, MaxLimit+500)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Count)
}

func TestMetricsEmpty(t *testing.T) {
	engine, _, device := newTestEngine(t)

	names, err := engine.Metrics(context.Background(), device.ID)
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)
}
