package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/devicepulse/backend/internal/model"
)

// ThresholdStore reads limit configurations. Thresholds are administered
// through a separate path; the ingestion pipeline only resolves them.
type ThresholdStore struct {
	db *gorm.DB
}

func NewThresholdStore(db *gorm.DB) *ThresholdStore {
	return &ThresholdStore{db: db}
}

// ActiveFor finds the active threshold for a device and metric. Metric
// matching is case-insensitive; if more than one active row matches (the
// uniqueness guard is on the literal name, so differently-cased duplicates
// can coexist) the most recently updated one wins. Absence is not an error:
// (nil, nil).
func (s *ThresholdStore) ActiveFor(ctx context.Context, deviceID uint, metric string) (*model.MeasurementThreshold, error) {
	var t model.MeasurementThreshold
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND is_active = ? AND LOWER(metric_name) = LOWER(?)", deviceID, true, metric).
		Order("updated_at DESC").
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *ThresholdStore) Create(ctx context.Context, t *model.MeasurementThreshold) error {
	return s.db.WithContext(ctx).Create(t).Error
}
