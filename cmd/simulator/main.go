// Command simulator publishes synthetic telemetry over MQTT for demos and
// load testing. One publisher per device topic; values follow a bounded
// random walk so thresholds actually trip now and then.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/devicepulse/backend/internal/model/messages"
	"github.com/devicepulse/backend/pkg/mqttbus"
)

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := mqttbus.Config{
		Host:     envStr("MQTT_HOST", "localhost"),
		Port:     1883,
		User:     envStr("MQTT_USER", "guest"),
		Password: envStr("MQTT_PASSWORD", "guest"),
		ClientID: envStr("HOSTNAME", "telemetry-simulator"),
	}
	deviceIDs := strings.Split(envStr("SIMULATOR_DEVICE_IDS", ""), ",")
	metric := envStr("SIMULATOR_METRIC", "temperature")
	unit := envStr("SIMULATOR_UNIT", "°C")
	interval, err := time.ParseDuration(envStr("SIMULATOR_INTERVAL", "5s"))
	if err != nil {
		interval = 5 * time.Second
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := mqttbus.NewConn(ctx, &cfg, log)
	if err != nil {
		log.Error("mqtt connect failed", "err", err)
		os.Exit(1)
	}

	type sim struct {
		pub   mqttbus.IPublisher
		value float64
	}
	sims := make([]sim, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		sims = append(sims, sim{
			pub:   mqttbus.NewPublisher(client, "devices/"+id+"/telemetry"),
			value: 20 + rand.Float64()*5,
		})
	}
	if len(sims) == 0 {
		log.Error("no device ids configured, set SIMULATOR_DEVICE_IDS")
		os.Exit(1)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i := range sims {
				sims[i].value += rand.Float64()*4 - 2
				v := decimal.NewFromFloat(sims[i].value).Round(4)
				now := time.Now().UTC()
				payload, err := json.Marshal(messages.TelemetrySample{
					Metric:    metric,
					Value:     &v,
					Unit:      unit,
					Timestamp: &now,
				})
				if err != nil {
					continue
				}
				if err := sims[i].pub.Publish(payload); err != nil {
					log.Warn("publish failed", "err", err)
				}
			}
		}
	}
}
