package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeviceStatus is the lifecycle state of a registered device.
type DeviceStatus string

const (
	StatusActive      DeviceStatus = "active"
	StatusInactive    DeviceStatus = "inactive"
	StatusMaintenance DeviceStatus = "maintenance"
	StatusError       DeviceStatus = "error"
)

// AlertSeverity levels, lowest to highest.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertStatus is pending until someone resolves the alert.
type AlertStatus string

const (
	AlertPending  AlertStatus = "pending"
	AlertResolved AlertStatus = "resolved"
)

// Device is a monitored entity. The registry service owns its lifecycle;
// this backend only reads devices, either by internal id or by the public
// UUID used on websocket and MQTT topics.
type Device struct {
	ID          uint         `gorm:"primarykey" json:"id"`
	PublicID    uuid.UUID    `gorm:"type:uuid;uniqueIndex" json:"public_id"`
	Name        string       `gorm:"size:255" json:"name"`
	Status      DeviceStatus `gorm:"size:20;default:inactive;index" json:"status"`
	Description string       `json:"description,omitempty"`
	CategoryID  *uint        `gorm:"index" json:"category_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Measurement is one immutable telemetry sample. Value keeps the full
// decimal precision the device reported; it is never round-tripped through
// a binary float.
type Measurement struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	DeviceID  uint            `gorm:"index:idx_meas_device_ts;index:idx_meas_device_metric" json:"device"`
	Device    *Device         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Metric    string          `gorm:"size:100;index;index:idx_meas_device_metric" json:"metric"`
	Value     decimal.Decimal `gorm:"type:numeric(20,10)" json:"value"`
	Unit      string          `gorm:"size:50" json:"unit"`
	Timestamp time.Time       `gorm:"index;index:idx_meas_device_ts" json:"timestamp"`
}

// MeasurementThreshold is the acceptable [MinLimit, MaxLimit] range for one
// device metric. At most one active row should exist per (device, metric);
// the storage layer enforces that on the literal metric name.
type MeasurementThreshold struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	DeviceID   uint            `gorm:"index" json:"device"`
	Device     *Device         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	MetricName string          `gorm:"size:100;index" json:"metric_name"`
	MinLimit   decimal.Decimal `gorm:"type:numeric(20,10)" json:"min_limit"`
	MaxLimit   decimal.Decimal `gorm:"type:numeric(20,10)" json:"max_limit"`
	IsActive   bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Alert records a threshold violation (or any other condition worth
// flagging) for a device. Resolution happens through the alert CRUD
// service, never through ingestion.
type Alert struct {
	ID         uint          `gorm:"primarykey" json:"id"`
	DeviceID   uint          `gorm:"index:idx_alert_device_status;index:idx_alert_device_created" json:"device"`
	Device     *Device       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title      string        `gorm:"size:255" json:"title"`
	Message    string        `json:"message"`
	Severity   AlertSeverity `gorm:"size:20;default:medium;index" json:"severity"`
	Status     AlertStatus   `gorm:"size:20;default:pending;index:idx_alert_device_status" json:"status"`
	CreatedAt  time.Time     `gorm:"index:idx_alert_device_created" json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	ResolvedAt *time.Time    `json:"resolved_at"`
}
