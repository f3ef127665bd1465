// Package ingest coordinates the write path for one telemetry sample:
// validate, persist, evaluate thresholds, then best-effort alerting,
// archive mirroring and live broadcast. Durability wins: once the
// measurement write commits, nothing that happens afterwards can turn the
// ingestion into a reported failure.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/devicepulse/backend/internal/model"
	"github.com/devicepulse/backend/internal/model/messages"
	"github.com/devicepulse/backend/internal/services/threshold"
	"github.com/devicepulse/backend/internal/storage"
)

// Broadcaster is the fanout dependency, injected at construction time so
// the hub has an explicit lifecycle instead of living in a package global.
type Broadcaster interface {
	Publish(topic string, event any) error
}

// Archiver mirrors committed measurements into long-term time-series
// storage. Implementations must not block the caller.
type Archiver interface {
	Mirror(m *model.Measurement, device *model.Device)
}

// Sample is one incoming telemetry payload. Pointer fields distinguish
// "absent" from zero values during validation.
type Sample struct {
	Metric    string
	Value     *decimal.Decimal
	Unit      string
	Timestamp *time.Time
}

// Orchestrator runs the ingestion pipeline. Requests are independent
// units of work; no lock serializes ingestion across devices or metrics.
type Orchestrator struct {
	devices      *storage.DeviceStore
	measurements *storage.MeasurementStore
	alerts       *storage.AlertStore
	resolver     *threshold.Resolver

	broadcaster Broadcaster
	breaker     *gobreaker.CircuitBreaker
	archive     Archiver // optional

	log *slog.Logger
}

// Options carries the optional collaborators.
type Options struct {
	Archive Archiver
	Logger  *slog.Logger

	// Breaker settings for the fanout publish attempt.
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

func NewOrchestrator(
	devices *storage.DeviceStore,
	measurements *storage.MeasurementStore,
	alerts *storage.AlertStore,
	resolver *threshold.Resolver,
	broadcaster Broadcaster,
	opts Options,
) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerOpenFor <= 0 {
		opts.BreakerOpenFor = 10 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "fanout-publish",
		Timeout: opts.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= opts.BreakerFailures
		},
	})
	return &Orchestrator{
		devices:      devices,
		measurements: measurements,
		alerts:       alerts,
		resolver:     resolver,
		broadcaster:  broadcaster,
		breaker:      cb,
		archive:      opts.Archive,
		log:          opts.Logger,
	}
}

// Ingest persists one sample for the device identified by its internal id.
// It fails before any write on an unknown device or an invalid payload, and
// fails as a whole when the measurement write fails. Alerting, archiving
// and broadcast run after the commit and are never allowed to propagate
// into the result.
func (o *Orchestrator) Ingest(ctx context.Context, deviceID uint, sample Sample) (*model.Measurement, error) {
	device, err := o.devices.ByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			validationRejected.Inc()
			return nil, fmt.Errorf("%w: id %d", ErrDeviceNotFound, deviceID)
		}
		return nil, fmt.Errorf("ingest: device lookup: %w", err)
	}

	if verr := validate(sample); verr != nil {
		validationRejected.Inc()
		return nil, verr
	}

	m := &model.Measurement{
		DeviceID:  device.ID,
		Metric:    strings.TrimSpace(sample.Metric),
		Value:     *sample.Value,
		Unit:      strings.TrimSpace(sample.Unit),
		Timestamp: *sample.Timestamp,
	}
	if err := o.measurements.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("ingest: persist measurement: %w", err)
	}
	measurementsIngested.Inc()

	// The measurement is durable from here on. Everything below is an
	// enrichment of an already-successful write.
	o.checkThreshold(ctx, device, m)
	o.mirror(m, device)
	o.broadcast(device, m)

	return m, nil
}

func validate(s Sample) *ValidationError {
	verr := &ValidationError{}
	if metric := strings.TrimSpace(s.Metric); metric == "" {
		verr.add("metric", "Metric cannot be empty.")
	} else if len(metric) < 2 {
		verr.add("metric", "Metric must be at least 2 characters long.")
	}
	if strings.TrimSpace(s.Unit) == "" {
		verr.add("unit", "Unit cannot be empty.")
	}
	if s.Value == nil {
		verr.add("value", "Value is required.")
	}
	if s.Timestamp == nil || s.Timestamp.IsZero() {
		verr.add("timestamp", "Timestamp is required.")
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// checkThreshold resolves the active threshold and raises a high-severity
// alert on violation. Failures here are logged and swallowed.
func (o *Orchestrator) checkThreshold(ctx context.Context, device *model.Device, m *model.Measurement) {
	t, err := o.resolver.Resolve(ctx, device.ID, m.Metric)
	if err != nil {
		sideEffectFailures.WithLabelValues("threshold").Inc()
		o.log.Error("ingest: threshold resolve failed", "device", device.ID, "metric", m.Metric, "err", err)
		return
	}
	violated, msg := threshold.Evaluate(m.Value, m.Unit, m.Metric, t)
	if !violated {
		return
	}
	alert := &model.Alert{
		DeviceID: device.ID,
		Title:    fmt.Sprintf("%s threshold violated", m.Metric),
		Message:  msg,
		Severity: model.SeverityHigh,
		Status:   model.AlertPending,
	}
	if err := o.alerts.Create(ctx, alert); err != nil {
		sideEffectFailures.WithLabelValues("alert").Inc()
		o.log.Error("ingest: alert create failed", "device", device.ID, "metric", m.Metric, "err", err)
		return
	}
	alertsCreated.Inc()
	o.log.Info("ingest: alert raised", "device", device.ID, "metric", m.Metric, "message", msg)
}

func (o *Orchestrator) mirror(m *model.Measurement, device *model.Device) {
	if o.archive == nil {
		return
	}
	o.archive.Mirror(m, device)
}

// broadcast publishes the persisted measurement to the device's topic. The
// attempt is bounded by a circuit breaker so a wedged fanout layer cannot
// slow the write path; any error is logged and swallowed.
func (o *Orchestrator) broadcast(device *model.Device, m *model.Measurement) {
	if o.broadcaster == nil {
		return
	}
	event := messages.MeasurementUpdate{
		Type:        messages.TypeMeasurementUpdate,
		Measurement: m,
	}
	_, err := o.breaker.Execute(func() (any, error) {
		return nil, o.broadcaster.Publish(device.PublicID.String(), event)
	})
	if err != nil {
		sideEffectFailures.WithLabelValues("broadcast").Inc()
		o.log.Warn("ingest: broadcast failed", "device", device.PublicID, "err", err)
	}
}
