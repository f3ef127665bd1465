package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/devicepulse/backend/internal/model"
)

// MeasurementStore appends and reads telemetry samples. Measurements are
// immutable: there is no update or delete path here, rows only disappear
// when their device is deleted (FK cascade).
type MeasurementStore struct {
	db *gorm.DB
}

func NewMeasurementStore(db *gorm.DB) *MeasurementStore {
	return &MeasurementStore{db: db}
}

func (s *MeasurementStore) Create(ctx context.Context, m *model.Measurement) error {
	return s.db.WithContext(ctx).Create(m).Error
}

// Recent returns up to limit measurements for a device, newest first,
// optionally restricted to one metric (case-insensitive) and to timestamps
// at or after since. The aggregation pipeline is built on this read: device
// filter, metric filter, time window, descending sort, truncation — in that
// order.
func (s *MeasurementStore) Recent(ctx context.Context, deviceID uint, metric string, since *time.Time, limit int) ([]model.Measurement, error) {
	q := s.db.WithContext(ctx).Where("device_id = ?", deviceID)
	if metric != "" {
		q = q.Where("LOWER(metric) = LOWER(?)", metric)
	}
	if since != nil {
		q = q.Where("timestamp >= ?", *since)
	}
	var out []model.Measurement
	err := q.Order("timestamp DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DistinctMetrics lists the metric names recorded for a device,
// alphabetically.
func (s *MeasurementStore) DistinctMetrics(ctx context.Context, deviceID uint) ([]string, error) {
	var out []string
	err := s.db.WithContext(ctx).
		Model(&model.Measurement{}).
		Where("device_id = ?", deviceID).
		Distinct("metric").
		Order("metric ASC").
		Pluck("metric", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountForDevice reports how many measurements a device has recorded.
func (s *MeasurementStore) CountForDevice(ctx context.Context, deviceID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&model.Measurement{}).
		Where("device_id = ?", deviceID).
		Count(&n).Error
	return n, err
}
