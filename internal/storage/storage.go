// Package storage is the gorm-backed persistence layer. One store per
// aggregate; all stores share a single *gorm.DB handle opened by the
// process entrypoint.
package storage

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/gorm"

	"github.com/devicepulse/backend/internal/model"
)

// Open connects with exponential backoff so a restarting database does not
// take the service down with it.
func Open(dial gorm.Dialector, opts ...gorm.Option) (*gorm.DB, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var db *gorm.DB
	err := backoff.Retry(func() error {
		var err error
		db, err = gorm.Open(dial, opts...)
		return err
	}, bo)
	if err != nil {
		return nil, fmt.Errorf("storage: open failed after retries: %w", err)
	}
	return db, nil
}

// Migrate creates the schema. The partial unique index guards the "one
// active threshold per (device, metric)" invariant on the literal stored
// metric name; resolution is case-insensitive on top of it.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Device{},
		&model.Measurement{},
		&model.MeasurementThreshold{},
		&model.Alert{},
	); err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS unique_active_threshold_per_device_metric
		 ON measurement_thresholds (device_id, metric_name) WHERE is_active`,
	).Error
	if err != nil {
		return fmt.Errorf("storage: active threshold index: %w", err)
	}
	return nil
}
