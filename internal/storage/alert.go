package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/devicepulse/backend/internal/model"
)

// AlertStore persists alerts raised by the ingestion pipeline and serves
// the read-only listing. Resolution (status transitions) belongs to the
// alert CRUD service.
type AlertStore struct {
	db *gorm.DB
}

func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{db: db}
}

func (s *AlertStore) Create(ctx context.Context, a *model.Alert) error {
	return s.db.WithContext(ctx).Create(a).Error
}

// ForDevice lists a device's alerts, newest first.
func (s *AlertStore) ForDevice(ctx context.Context, deviceID uint, limit int) ([]model.Alert, error) {
	var out []model.Alert
	q := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
