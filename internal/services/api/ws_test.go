package api

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicepulse/backend/internal/model/messages"
	"github.com/devicepulse/backend/internal/services/fanout"
)

func dialDevice(t *testing.T, e *testEnv, publicID string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(
		wsURL(e.srv.URL, fmt.Sprintf("/ws/device/%s/", publicID)), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestDeviceSocketWelcomeFrame(t *testing.T) {
	e := newTestEnv(t)
	conn := dialDevice(t, e, e.device.PublicID.String())

	var welcome messages.ConnectionEstablished
	readFrame(t, conn, &welcome)
	assert.Equal(t, messages.TypeConnectionEstablished, welcome.Type)
	assert.Equal(t, e.device.PublicID.String(), welcome.DeviceID)
	assert.Equal(t, e.device.Name, welcome.DeviceName)
	assert.Contains(t, welcome.Message, e.device.PublicID.String())
}

func TestDeviceSocketReceivesIngestedMeasurements(t *testing.T) {
	e := newTestEnv(t)
	conn := dialDevice(t, e, e.device.PublicID.String())

	var welcome messages.ConnectionEstablished
	readFrame(t, conn, &welcome)

	// The welcome frame is written after registration, so once it arrives
	// the subscriber is guaranteed to see subsequent ingests.
	resp := e.post(t, fmt.Sprintf("/api/devices/%d/measurements/", e.device.ID),
		measurementBody("temperature", "23.4"))
	require.Equal(t, 201, resp.StatusCode)
	resp.Body.Close()

	var update struct {
		Type        string `json:"type"`
		Measurement struct {
			Metric string `json:"metric"`
			Value  string `json:"value"`
		} `json:"measurement"`
	}
	readFrame(t, conn, &update)
	assert.Equal(t, messages.TypeMeasurementUpdate, update.Type)
	assert.Equal(t, "temperature", update.Measurement.Metric)
	assert.Equal(t, "23.4", update.Measurement.Value)
}

func TestDeviceSocketUnknownDeviceCloses4004(t *testing.T) {
	e := newTestEnv(t)

	conn, resp, err := websocket.DefaultDialer.Dial(
		wsURL(e.srv.URL, fmt.Sprintf("/ws/device/%s/", uuid.NewString())), nil)
	require.NoError(t, err, "the handshake itself succeeds")
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, fanout.CloseDeviceNotFound, closeErr.Code)
	assert.Equal(t, "device not found", closeErr.Text)
}

func TestDeviceSocketMalformedPublicIDCloses4004(t *testing.T) {
	e := newTestEnv(t)

	conn, resp, err := websocket.DefaultDialer.Dial(
		wsURL(e.srv.URL, "/ws/device/not-a-uuid/"), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, fanout.CloseDeviceNotFound, closeErr.Code)
}

func TestDeviceSocketInboundEcho(t *testing.T) {
	e := newTestEnv(t)
	conn := dialDevice(t, e, e.device.PublicID.String())

	var welcome messages.ConnectionEstablished
	readFrame(t, conn, &welcome)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"ping":true}`)))
	var echo messages.MessageReceived
	readFrame(t, conn, &echo)
	assert.Equal(t, messages.TypeMessageReceived, echo.Type)
	assert.JSONEq(t, `{"ping":true}`, string(echo.Data))
}

func TestDeviceSocketInvalidInboundJSON(t *testing.T) {
	e := newTestEnv(t)
	conn := dialDevice(t, e, e.device.PublicID.String())

	var welcome messages.ConnectionEstablished
	readFrame(t, conn, &welcome)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{{nope")))
	var frame messages.ErrorEvent
	readFrame(t, conn, &frame)
	assert.Equal(t, messages.TypeError, frame.Type)
	assert.Equal(t, "Invalid JSON format", frame.Message)

	// The connection survives the error frame.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`"still here"`)))
	var echo messages.MessageReceived
	readFrame(t, conn, &echo)
	assert.Equal(t, messages.TypeMessageReceived, echo.Type)
}

func TestDeviceSocketDisconnectPrunesTopic(t *testing.T) {
	e := newTestEnv(t)
	topic := e.device.PublicID.String()
	conn := dialDevice(t, e, topic)

	var welcome messages.ConnectionEstablished
	readFrame(t, conn, &welcome)
	require.Equal(t, 1, e.hub.Subscribers(topic))

	conn.Close()
	require.Eventually(t, func() bool {
		return e.hub.Subscribers(topic) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
