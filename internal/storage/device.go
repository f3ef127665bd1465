package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devicepulse/backend/internal/model"
)

// ErrNotFound is returned by lookups when no row matches. Callers translate
// it into their own not-found signal (HTTP 404, websocket close 4004).
var ErrNotFound = errors.New("storage: not found")

// DeviceStore reads devices. The registry service owns writes; Create
// exists for seeding and tests only.
type DeviceStore struct {
	db *gorm.DB
}

func NewDeviceStore(db *gorm.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

func (s *DeviceStore) ByID(ctx context.Context, id uint) (*model.Device, error) {
	var d model.Device
	err := s.db.WithContext(ctx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DeviceStore) ByPublicID(ctx context.Context, publicID uuid.UUID) (*model.Device, error) {
	var d model.Device
	err := s.db.WithContext(ctx).Where("public_id = ?", publicID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DeviceStore) Create(ctx context.Context, d *model.Device) error {
	if d.PublicID == uuid.Nil {
		d.PublicID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(d).Error
}
