package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/devicepulse/backend/internal/services/archive"
	"github.com/devicepulse/backend/pkg/mqttbus"
)

type Config struct {
	Port        string
	DatabaseDSN string

	// Optional collaborators; each is enabled by its primary env var.
	Influx archive.Config
	MQTT   mqttbus.Config

	BridgeTopic string

	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func loadConfig() Config {
	return Config{
		Port: envStr("PORT", "8000"),
		DatabaseDSN: envStr("DATABASE_DSN",
			"host=localhost user=telemetry password=telemetry dbname=telemetry port=5432 sslmode=disable"),

		Influx: archive.Config{
			URL:           os.Getenv("INFLUX_URL"),
			Token:         os.Getenv("INFLUX_TOKEN"),
			Org:           envStr("INFLUX_ORG", "devicepulse"),
			Bucket:        envStr("INFLUX_BUCKET", "telemetry"),
			BatchSize:     envInt("INFLUX_BATCH_SIZE", 20),
			FlushInterval: envDur("INFLUX_FLUSH_INTERVAL", 500*time.Millisecond),
		},

		MQTT: mqttbus.Config{
			Host:     os.Getenv("MQTT_HOST"),
			Port:     envInt("MQTT_PORT", 1883),
			User:     envStr("MQTT_USER", "guest"),
			Password: envStr("MQTT_PASSWORD", "guest"),
			ClientID: envStr("HOSTNAME", "telemetry-server"),
		},

		BridgeTopic: envStr("MQTT_TELEMETRY_TOPIC", "devices/+/telemetry"),

		BreakerFailures: uint32(envInt("BROADCAST_BREAKER_FAILURES", 5)),
		BreakerOpenFor:  envDur("BROADCAST_BREAKER_OPEN", 10*time.Second),
	}
}
