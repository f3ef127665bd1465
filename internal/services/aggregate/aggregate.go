// Package aggregate answers bounded, filtered, windowed statistics queries
// over measurement history. The pipeline order is a contract: filter to the
// device, optionally to the metric (case-insensitive) and the time window,
// sort newest first, truncate to the limit, then compute statistics over
// exactly the truncated set.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/devicepulse/backend/internal/model"
	"github.com/devicepulse/backend/internal/storage"
)

// Period selects the minimum-timestamp bound of a query.
type Period string

const (
	PeriodLast24h Period = "last_24h"
	PeriodLast7d  Period = "last_7d"
	PeriodLast30d Period = "last_30d"
	PeriodAll     Period = "all"
)

const (
	// DefaultLimit matches the HTTP default; MaxLimit keeps a single query
	// from dragging unbounded history into memory.
	DefaultLimit = 100
	MaxLimit     = 1000
)

// ParsePeriod maps the query-string form to a Period; empty means all.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return PeriodAll, nil
	case PeriodLast24h, PeriodLast7d, PeriodLast30d, PeriodAll:
		return Period(s), nil
	}
	return "", fmt.Errorf("invalid period %q", s)
}

// Since translates the period into a lower bound, nil for all.
func (p Period) Since(now time.Time) *time.Time {
	var d time.Duration
	switch p {
	case PeriodLast24h:
		d = 24 * time.Hour
	case PeriodLast7d:
		d = 7 * 24 * time.Hour
	case PeriodLast30d:
		d = 30 * 24 * time.Hour
	default:
		return nil
	}
	t := now.Add(-d)
	return &t
}

// Statistics are computed over the truncated point set. All three are null,
// not zero, when the set is empty.
type Statistics struct {
	Mean *float64 `json:"mean"`
	Max  *float64 `json:"max"`
	Min  *float64 `json:"min"`
}

// Result is the aggregated answer for one device query. Measurements keep
// the newest-first order used for truncation.
type Result struct {
	Measurements []model.Measurement `json:"measurements"`
	Statistics   Statistics          `json:"statistics"`
	Count        int                 `json:"count"`
}

// Engine reads the measurement store only; it never writes.
type Engine struct {
	store *storage.MeasurementStore
	now   func() time.Time
}

func NewEngine(store *storage.MeasurementStore) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Aggregate runs the fixed pipeline for one device. metric may be empty;
// limit is clamped to [1, MaxLimit] with DefaultLimit for zero.
func (e *Engine) Aggregate(ctx context.Context, deviceID uint, metric string, period Period, limit int) (*Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	points, err := e.store.Recent(ctx, deviceID, metric, period.Since(e.now()), limit)
	if err != nil {
		return nil, fmt.Errorf("aggregate: query: %w", err)
	}

	res := &Result{
		Measurements: points,
		Statistics:   computeStats(points),
		Count:        len(points),
	}
	if res.Measurements == nil {
		res.Measurements = []model.Measurement{}
	}
	return res, nil
}

// Metrics lists the distinct metric names recorded for a device,
// alphabetically.
func (e *Engine) Metrics(ctx context.Context, deviceID uint) ([]string, error) {
	names, err := e.store.DistinctMetrics(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("aggregate: metrics: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// computeStats folds mean/max/min over the truncated set with exact decimal
// arithmetic before converting to the JSON number representation.
func computeStats(points []model.Measurement) Statistics {
	if len(points) == 0 {
		return Statistics{}
	}
	sum := decimal.Zero
	max := points[0].Value
	min := points[0].Value
	for _, p := range points {
		sum = sum.Add(p.Value)
		if p.Value.GreaterThan(max) {
			max = p.Value
		}
		if p.Value.LessThan(min) {
			min = p.Value
		}
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(points))))

	meanF, _ := mean.Float64()
	maxF, _ := max.Float64()
	minF, _ := min.Float64()
	return Statistics{Mean: &meanF, Max: &maxF, Min: &minF}
}
