package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "telemetry_bridge_messages_total",
	Help: "Bus messages by outcome.",
}, []string{"outcome"})
