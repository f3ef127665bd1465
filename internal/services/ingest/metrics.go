package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	measurementsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_measurements_ingested_total",
		Help: "Measurements successfully persisted.",
	})
	validationRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_measurements_rejected_total",
		Help: "Samples rejected before persistence (validation or unknown device).",
	})
	alertsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_alerts_created_total",
		Help: "Alerts raised by threshold violations.",
	})
	sideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_side_effect_failures_total",
		Help: "Post-commit side effects that failed and were swallowed.",
	}, []string{"stage"})
)
