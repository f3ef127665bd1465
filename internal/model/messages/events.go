// Package messages defines the wire frames exchanged with live subscribers
// and with devices publishing telemetry over MQTT.
package messages

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Frame type tags.
const (
	TypeConnectionEstablished = "connection_established"
	TypeMeasurementUpdate     = "measurement_update"
	TypeMessageReceived       = "message_received"
	TypeError                 = "error"
)

// ConnectionEstablished is the welcome frame sent to a subscriber right
// after a successful subscription, before any measurement frame.
type ConnectionEstablished struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

// MeasurementUpdate carries one persisted measurement to subscribers of the
// owning device's topic.
type MeasurementUpdate struct {
	Type        string `json:"type"`
	Measurement any    `json:"measurement"`
}

// MessageReceived echoes a well-formed client frame back on the same
// connection.
type MessageReceived struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ErrorEvent answers malformed client input in-band; the connection stays
// open.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// TelemetrySample is the payload devices publish on
// devices/{public_id}/telemetry. Pointers distinguish absent fields from
// zero values during validation.
type TelemetrySample struct {
	Metric    string           `json:"metric"`
	Value     *decimal.Decimal `json:"value"`
	Unit      string           `json:"unit"`
	Timestamp *time.Time       `json:"timestamp"`
}
