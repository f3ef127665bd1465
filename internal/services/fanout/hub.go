// Package fanout delivers live events to websocket observers. One topic per
// device, keyed by the device's public id; zero or more subscriber handles
// per topic. Delivery is best-effort and at-most-once: there is no queueing,
// no replay, and a handle that subscribes after a publish returns never sees
// that event.
package fanout

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Hub is the topic registry. It owns nothing beyond the registry entry
// itself: once a subscriber is removed the hub holds no reference to it.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscriber]struct{}
	log    *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		topics: make(map[string]map[*Subscriber]struct{}),
		log:    log,
	}
}

// Add registers a subscriber handle under its topic. The welcome frame, if
// any, must already be queued on the handle so it precedes every event
// published after this call returns.
func (h *Hub) Add(s *Subscriber) {
	h.mu.Lock()
	set, ok := h.topics[s.topic]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.topics[s.topic] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("fanout: subscriber added", "topic", s.topic)
}

// Remove unregisters a handle and closes its outbound channel. Idempotent:
// calling it twice, or after the topic has emptied, is safe.
func (h *Hub) Remove(s *Subscriber) {
	h.mu.Lock()
	set, ok := h.topics[s.topic]
	if ok {
		if _, present := set[s]; present {
			delete(set, s)
			s.closeSend()
		}
		if len(set) == 0 {
			delete(h.topics, s.topic)
		}
	}
	h.mu.Unlock()
}

// Publish marshals the event once and hands it to every handle subscribed
// to the topic at the moment of the call. Sends never block: a subscriber
// whose buffer is full is dropped and unregistered, the slow consumer loses
// the connection rather than stalling ingestion.
func (h *Hub) Publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("fanout: marshal event: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.topics[topic]
	for s := range set {
		select {
		case s.send <- payload:
		default:
			h.log.Warn("fanout: subscriber buffer full, dropping", "topic", topic)
			delete(set, s)
			s.closeSend()
		}
	}
	if len(set) == 0 {
		delete(h.topics, topic)
	}
	return nil
}

// Subscribers reports how many handles a topic currently has.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
