package fanout

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devicepulse/backend/internal/model/messages"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// CloseDeviceNotFound is the websocket close code for subscriptions to a
// device that does not exist.
const CloseDeviceNotFound = 4004

// Subscriber is one live observer handle: the link between a websocket
// connection and the hub's topic registry. Within one connection inbound
// and outbound frames are strictly ordered; across connections nothing is.
type Subscriber struct {
	hub   *Hub
	topic string
	conn  *websocket.Conn
	send  chan []byte

	mu     sync.Mutex
	closed bool

	log *slog.Logger
}

// NewSubscriber builds a handle for a device topic. The caller queues the
// welcome frame, registers the handle with Hub.Add, then starts the pumps.
func NewSubscriber(hub *Hub, topic string, conn *websocket.Conn) *Subscriber {
	return &Subscriber{
		hub:   hub,
		topic: topic,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		log:   hub.log,
	}
}

// Queue enqueues a frame without blocking; it reports false when the handle
// is already closed or the buffer is full.
func (s *Subscriber) Queue(event any) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *Subscriber) closeSend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// ReadPump consumes client frames until the connection drops. Malformed
// JSON gets an in-band error frame and the connection stays open;
// well-formed frames are echoed back as message_received.
func (s *Subscriber) ReadPump() {
	defer func() {
		s.hub.Remove(s)
		s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("fanout: read error", "topic", s.topic, "err", err)
			}
			return
		}
		if !json.Valid(raw) {
			s.Queue(messages.ErrorEvent{Type: messages.TypeError, Message: "Invalid JSON format"})
			continue
		}
		s.Queue(messages.MessageReceived{Type: messages.TypeMessageReceived, Data: raw})
	}
}

// WritePump drains the send channel onto the connection and keeps the peer
// alive with pings. It exits when the hub closes the channel or a write
// fails.
func (s *Subscriber) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
