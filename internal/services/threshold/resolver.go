// Package threshold resolves the active limit configuration for a device
// metric and decides whether a measurement violates it.
package threshold

import (
	"context"

	"github.com/devicepulse/backend/internal/model"
	"github.com/devicepulse/backend/internal/storage"
)

// Resolver finds the active threshold for a (device, metric) pair.
type Resolver struct {
	store *storage.ThresholdStore
}

func NewResolver(store *storage.ThresholdStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve is a pure read: (nil, nil) when no active threshold matches.
// Matching is case-insensitive on the metric name; transient duplicates are
// tie-broken by most-recent update in the store.
func (r *Resolver) Resolve(ctx context.Context, deviceID uint, metric string) (*model.MeasurementThreshold, error) {
	return r.store.ActiveFor(ctx, deviceID, metric)
}
