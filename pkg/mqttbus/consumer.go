package mqttbus

import (
	"context"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one inbound message. Returning an error logs it; the
// subscription stays alive either way.
type Handler func(topic string, message mqtt.Message) error

// IConsumer subscribes to a topic filter and feeds messages to a handler
// until the context is cancelled.
type IConsumer interface {
	Consume(ctx context.Context)
	SetHandler(h Handler)
}

// Consumer subscribes to a single topic filter on a shared client.
type Consumer struct {
	client  mqtt.Client
	topic   string
	handler Handler
	log     *slog.Logger
}

func NewConsumer(client mqtt.Client, topic string, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{client: client, topic: topic, log: log}
}

func (c *Consumer) SetHandler(h Handler) {
	c.handler = h
}

// qosFor picks at-least-once delivery for telemetry topics and filters
// (the bridge dedupes redeliveries) and at-most-once for everything else.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "devices/") && strings.Contains(t, "telemetry") {
		return 1
	}
	return 0
}

// Consume blocks until ctx is done, then unsubscribes.
func (c *Consumer) Consume(ctx context.Context) {
	token := c.client.Subscribe(
		c.topic,
		qosFor(c.topic),
		func(_ mqtt.Client, message mqtt.Message) {
			if c.handler == nil {
				c.log.Warn("mqttbus: no handler set", "topic", c.topic)
				return
			}
			if err := c.handler(message.Topic(), message); err != nil {
				c.log.Error("mqttbus: handler error", "topic", message.Topic(), "err", err)
			}
		},
	)
	if token.Wait() && token.Error() != nil {
		c.log.Error("mqttbus: subscribe failed", "topic", c.topic, "err", token.Error())
		return
	}
	c.log.Info("mqttbus: subscribed", "topic", c.topic)

	<-ctx.Done()

	unsub := c.client.Unsubscribe(c.topic)
	unsub.Wait()
}
