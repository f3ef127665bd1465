package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/devicepulse/backend/internal/model"
	"github.com/devicepulse/backend/internal/model/messages"
	"github.com/devicepulse/backend/internal/services/fanout"
	"github.com/devicepulse/backend/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleDeviceSocket opens a live subscription to one device's topic.
// GET /ws/device/{publicID}/
//
// Unknown devices are refused with close code 4004 after the handshake so
// the client sees a distinct not-found signal rather than a failed upgrade.
func (a *API) HandleDeviceSocket(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "publicID")

	var device *model.Device
	if publicID, err := uuid.Parse(raw); err == nil {
		d, err := a.devices.ByPublicID(r.Context(), publicID)
		switch {
		case err == nil:
			device = d
		case errors.Is(err, storage.ErrNotFound):
			// close with 4004 below
		default:
			a.log.Error("api: ws device lookup failed", "public_id", raw, "err", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("api: ws upgrade failed", "err", err)
		return
	}

	if device == nil {
		a.log.Warn("api: ws connection to unknown device", "public_id", raw)
		msg := websocket.FormatCloseMessage(fanout.CloseDeviceNotFound, "device not found")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		conn.Close()
		return
	}

	topic := device.PublicID.String()
	sub := fanout.NewSubscriber(a.hub, topic, conn)
	sub.Queue(messages.ConnectionEstablished{
		Type:       messages.TypeConnectionEstablished,
		Message:    fmt.Sprintf("Connected to device %s", topic),
		DeviceID:   topic,
		DeviceName: device.Name,
	})
	a.hub.Add(sub)

	go sub.WritePump()
	go sub.ReadPump()

	a.log.Info("api: ws connected", "device", topic)
}
