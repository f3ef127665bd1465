// Package bridge feeds the ingestion orchestrator from the MQTT bus.
// Devices publish telemetry on devices/{public_id}/telemetry; the bridge
// validates the topic, drops redeliveries, resolves the device and runs the
// same pipeline as HTTP ingestion.
package bridge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/devicepulse/backend/internal/model/messages"
	"github.com/devicepulse/backend/internal/services/ingest"
	"github.com/devicepulse/backend/internal/storage"
	"github.com/devicepulse/backend/pkg/dedup"
	"github.com/devicepulse/backend/pkg/mqttbus"
)

var (
	ErrInvalidTopic   = errors.New("bridge: invalid topic")
	ErrInvalidPayload = errors.New("bridge: invalid payload")
)

type Service struct {
	consumer mqttbus.IConsumer
	devices  *storage.DeviceStore
	orch     *ingest.Orchestrator
	deduper  *dedup.Deduper
	log      *slog.Logger
}

func NewService(consumer mqttbus.IConsumer, devices *storage.DeviceStore, orch *ingest.Orchestrator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		consumer: consumer,
		devices:  devices,
		orch:     orch,
		deduper:  dedup.New(2*time.Minute, 10000),
		log:      log,
	}
}

// Start blocks consuming the telemetry filter until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.consumer.SetHandler(s.handle)
	s.consumer.Consume(ctx)
}

// handle processes one bus message. Malformed input is logged and skipped;
// it must not stall the subscription.
func (s *Service) handle(topic string, msg mqtt.Message) error {
	publicID, err := parseTopic(topic)
	if err != nil {
		messagesHandled.WithLabelValues("bad_topic").Inc()
		s.log.Warn("bridge: dropping message", "topic", topic, "err", err)
		return nil
	}

	if !s.deduper.ShouldProcess(messageKey(topic, msg.Payload())) {
		messagesHandled.WithLabelValues("duplicate").Inc()
		return nil
	}

	var sample messages.TelemetrySample
	if err := json.Unmarshal(msg.Payload(), &sample); err != nil {
		messagesHandled.WithLabelValues("bad_payload").Inc()
		s.log.Warn("bridge: dropping message", "topic", topic, "err", fmt.Errorf("%w: %v", ErrInvalidPayload, err))
		return nil
	}

	ctx := context.Background()
	device, err := s.devices.ByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			messagesHandled.WithLabelValues("unknown_device").Inc()
			s.log.Warn("bridge: unknown device", "public_id", publicID)
			return nil
		}
		return fmt.Errorf("bridge: device lookup: %w", err)
	}

	_, err = s.orch.Ingest(ctx, device.ID, ingest.Sample{
		Metric:    sample.Metric,
		Value:     sample.Value,
		Unit:      sample.Unit,
		Timestamp: sample.Timestamp,
	})
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			messagesHandled.WithLabelValues("rejected").Inc()
			s.log.Warn("bridge: rejected sample", "device", device.ID, "err", verr)
			return nil
		}
		return err
	}
	messagesHandled.WithLabelValues("ingested").Inc()
	return nil
}

// parseTopic expects devices/{public_id}/telemetry.
func parseTopic(topic string) (uuid.UUID, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "devices" || parts[2] != "telemetry" {
		return uuid.Nil, fmt.Errorf("%w: %q, expected devices/{public_id}/telemetry", ErrInvalidTopic, topic)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad device id %q", ErrInvalidTopic, parts[1])
	}
	return id, nil
}

func messageKey(topic string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(topic))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
