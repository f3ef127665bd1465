// Package archive mirrors committed measurements into InfluxDB for
// long-term time-series retention and dashboarding. The mirror is a
// best-effort side effect of ingestion: writes are asynchronous and write
// errors are recorded for the readiness probe, never surfaced to the
// ingestion caller.
package archive

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/devicepulse/backend/internal/model"
)

type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	BatchSize     int
	FlushInterval time.Duration
}

// Writer wraps the non-blocking Influx WriteAPI and tracks the last write
// error so /readyz can report a degraded archive.
type Writer struct {
	client influxdb2.Client
	api    api.WriteAPI

	mu      sync.RWMutex
	lastErr time.Time

	log *slog.Logger
}

func NewWriter(cfg Config, log *slog.Logger) (*Writer, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: influx config incomplete")
	}
	if log == nil {
		log = slog.Default()
	}
	opts := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		opts = opts.SetBatchSize(uint(cfg.BatchSize))
	}
	if cfg.FlushInterval > 0 {
		opts = opts.SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	w := &Writer{
		client:  client,
		api:     client.WriteAPI(cfg.Org, cfg.Bucket),
		lastErr: time.Now().Add(-24 * time.Hour),
		log:     log,
	}
	go func() {
		for err := range w.api.Errors() {
			if err != nil {
				w.mu.Lock()
				w.lastErr = time.Now()
				w.mu.Unlock()
				w.log.Error("archive: influx write error", "err", err)
			}
		}
	}()
	return w, nil
}

// Mirror enqueues one measurement point. The value is downsampled to
// float64 here; the relational store keeps the exact decimal.
func (w *Writer) Mirror(m *model.Measurement, device *model.Device) {
	tags := map[string]string{
		"device_id": device.PublicID.String(),
		"metric":    sanitizeTag(m.Metric),
		"unit":      sanitizeTag(m.Unit),
	}
	value, _ := m.Value.Float64()
	fields := map[string]interface{}{
		"value": value,
	}
	point := influxdb2.NewPoint("measurements", tags, fields, m.Timestamp)
	w.api.WritePoint(point)
}

// LastErrorAge reports how long the archive has gone without a write error.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// Close flushes pending points and shuts the client down.
func (w *Writer) Close() {
	w.api.Flush()
	w.client.Close()
}

func sanitizeTag(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-', r == '%', r == '/':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
