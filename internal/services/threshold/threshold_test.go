package threshold

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

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	return db
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestResolveCaseInsensitiveActiveOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	device := &model.Device{Name: "dev", Status: model.StatusActive}
	require.NoError(t, storage.NewDeviceStore(db).Create(ctx, device))
	store := storage.NewThresholdStore(db)
	r := NewResolver(store)

	require.NoError(t, store.Create(ctx, &model.MeasurementThreshold{
		DeviceID: device.ID, MetricName: "Temperature",
		MinLimit: dec(t, "10"), MaxLimit: dec(t, "30"), IsActive: true,
	}))
	require.NoError(t, store.Create(ctx, &model.MeasurementThreshold{
		DeviceID: device.ID, MetricName: "humidity",
		MinLimit: dec(t, "0"), MaxLimit: dec(t, "100"), IsActive: false,
	}))

	got, err := r.Resolve(ctx, device.ID, "tempERATURE")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Temperature", got.MetricName)

	// Inactive thresholds never resolve.
	got, err = r.Resolve(ctx, device.ID, "humidity")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Absence is not an error.
	got, err = r.Resolve(ctx, device.ID, "pressure")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveTieBreakMostRecentlyUpdated(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	device := &model.Device{Name: "dev", Status: model.StatusActive}
	require.NoError(t, storage.NewDeviceStore(db).Create(ctx, device))
	store := storage.NewThresholdStore(db)

	// Differently-cased metric names slip past the literal uniqueness
	// guard; the resolver must pick the newest deterministically.
	older := &model.MeasurementThreshold{
		DeviceID: device.ID, MetricName: "temperature",
		MinLimit: dec(t, "10"), MaxLimit: dec(t, "30"), IsActive: true,
	}
	require.NoError(t, store.Create(ctx, older))
	require.NoError(t, db.Model(older).UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	newer := &model.MeasurementThreshold{
		DeviceID: device.ID, MetricName: "Temperature",
		MinLimit: dec(t, "15"), MaxLimit: dec(t, "25"), IsActive: true,
	}
	require.NoError(t, store.Create(ctx, newer))

	got, err := NewResolver(store).Resolve(ctx, device.ID, "temperature")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID)
}

func TestEvaluate(t *testing.T) {
	th := &model.MeasurementThreshold{
		MetricName: "temperature",
		MinLimit:   dec(t, "10"),
		MaxLimit:   dec(t, "30"),
	}

	tests := []struct {
		name     string
		value    string
		violated bool
		contains []string
	}{
		{"above maximum", "35", true, []string{"temperature", "above maximum", "35", "30"}},
		{"below minimum", "5", true, []string{"temperature", "below minimum", "5", "10"}},
		{"inside range", "20", false, nil},
		{"at minimum", "10", false, nil},
		{"at maximum", "30", false, nil},
		{"fractional breach", "30.0000000001", true, []string{"above maximum"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			violated, msg := Evaluate(dec(t, tc.value), "°C", "temperature", th)
			assert.Equal(t, tc.violated, violated)
			if !tc.violated {
				assert.Empty(t, msg)
			}
			for _, want := range tc.contains {
				assert.Contains(t, msg, want)
			}
		})
	}
}

func TestEvaluateNoThreshold(t *testing.T) {
	violated, msg := Evaluate(dec(t, "1000000"), "°C", "temperature", nil)
	assert.False(t, violated)
	assert.Empty(t, msg)
}
