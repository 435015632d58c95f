package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeDominic92/okta-sso-hub/event"
	"github.com/MikeDominic92/okta-sso-hub/executor"
)

func testHub(t *testing.T, sendBuf int) (*Hub, *httptest.Server) {
	t.Helper()
	h := newHub(sendBuf, slog.Default(), nil)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return h, ts
}

func dialWS(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(httpURL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitClients waits for the hub's registry to settle. Registration
// happens just after the upgrade handshake, so a fresh dial may race
// a direct ClientCount read.
func waitClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.ClientCount() == want },
		2*time.Second, 10*time.Millisecond)
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestHub_BroadcastEventDeliversFrame(t *testing.T) {
	h, ts := testHub(t, 8)
	conn := dialWS(t, ts.URL)
	waitClients(t, h, 1)

	e := event.Simulate(event.TypeLifecycleCreate)
	h.BroadcastEvent(e, []*executor.Result{{
		ExecutionID: "exec_1",
		FlowID:      "flow_new_hire_onboarding",
		Status:      executor.StatusSuccess,
		StartedAt:   time.Now(),
	}})

	frame := readFrame(t, conn)
	assert.Equal(t, FrameEvent, frame.Kind)
	assert.NotZero(t, frame.Timestamp)

	var payload EventFrame
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	assert.Equal(t, e.ID, payload.Event.ID)
	require.Len(t, payload.Results, 1)
	assert.Equal(t, "exec_1", payload.Results[0].ExecutionID)
}

func TestHub_BroadcastExecutionDeliversFrame(t *testing.T) {
	h, ts := testHub(t, 8)
	conn := dialWS(t, ts.URL)
	waitClients(t, h, 1)

	h.BroadcastExecution(&executor.Result{
		ExecutionID: "exec_9",
		FlowID:      "flow_offboarding",
		Status:      executor.StatusFailed,
		StartedAt:   time.Now(),
		Error:       "downstream rejected the request",
	})

	frame := readFrame(t, conn)
	assert.Equal(t, FrameExecution, frame.Kind)

	var res executor.Result
	require.NoError(t, json.Unmarshal(frame.Payload, &res))
	assert.Equal(t, "exec_9", res.ExecutionID)
	assert.Equal(t, executor.StatusFailed, res.Status)
}

func TestHub_NilBroadcastsAreIgnored(t *testing.T) {
	h, _ := testHub(t, 8)

	h.BroadcastEvent(nil, nil)
	h.BroadcastExecution(nil)
	assert.Zero(t, h.ClientCount())
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	h, ts := testHub(t, 8)
	first := dialWS(t, ts.URL)
	second := dialWS(t, ts.URL)
	waitClients(t, h, 2)

	h.BroadcastEvent(event.Simulate(event.TypeLogout), nil)

	for _, conn := range []*websocket.Conn{first, second} {
		frame := readFrame(t, conn)
		assert.Equal(t, FrameEvent, frame.Kind)
	}
}

func TestHub_ClientCloseCleansUp(t *testing.T) {
	h, ts := testHub(t, 8)
	conn := dialWS(t, ts.URL)
	waitClients(t, h, 1)

	require.NoError(t, conn.Close())
	waitClients(t, h, 0)

	// Broadcasting into an empty hub is a no-op.
	h.BroadcastEvent(event.Simulate(event.TypeLogout), nil)
	assert.Zero(t, h.ClientCount())
}

func TestHub_SlowClientDropped(t *testing.T) {
	h, ts := testHub(t, 1)
	dialWS(t, ts.URL)
	waitClients(t, h, 1)

	// The client never reads. Oversized frames wedge the write pump
	// against the socket buffer, the one-slot send queue fills, and the
	// next broadcast drops the client instead of blocking.
	pad := strings.Repeat("x", 4<<20)
	for i := 0; i < 6; i++ {
		h.BroadcastEvent(event.Simulate(event.TypeLogout,
			event.WithData(map[string]any{"pad": pad})), nil)
	}

	require.Eventually(t, func() bool { return h.ClientCount() == 0 },
		15*time.Second, 25*time.Millisecond)
}

func TestHub_ShutdownDisconnectsClients(t *testing.T) {
	h, ts := testHub(t, 8)
	conn := dialWS(t, ts.URL)
	waitClients(t, h, 1)

	h.Shutdown()
	waitClients(t, h, 0)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// New connections are refused after shutdown.
	late := dialWS(t, ts.URL)
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, h.ClientCount())
}

// The live feed also works through the full route table, where the
// upgrade must pass through the instrumentation middleware.
func TestGateway_LiveFeedBehindMiddleware(t *testing.T) {
	s, ts := testServer(t)
	conn := dialWS(t, ts.URL+"/ws/events")
	waitClients(t, s.hub, 1)

	resp, err := http.Post(ts.URL+"/api/v1/events/simulate", "application/json",
		strings.NewReader(`{"event_type":"user.lifecycle.create"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	frame := readFrame(t, conn)
	assert.Equal(t, FrameEvent, frame.Kind)

	var payload EventFrame
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	assert.Equal(t, event.TypeLifecycleCreate, payload.Event.Type)
	require.Len(t, payload.Results, 1)
	assert.Equal(t, "flow_new_hire_onboarding", payload.Results[0].FlowID)
}
