package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeDominic92/okta-sso-hub/event"
	"github.com/MikeDominic92/okta-sso-hub/executor"
	"github.com/MikeDominic92/okta-sso-hub/metric"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsReadLimit    = 1024
)

// Frame kinds pushed over the live feed.
const (
	FrameEvent     = "event"
	FrameExecution = "execution"
)

// Frame is the envelope for every message pushed to websocket clients.
type Frame struct {
	Kind      string          `json:"kind"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// EventFrame pairs a processed event with the executions it triggered.
type EventFrame struct {
	Event   *event.Event       `json:"event"`
	Results []*executor.Result `json:"results,omitempty"`
}

type hubMetrics struct {
	clients        prometheus.Gauge
	connections    prometheus.Counter
	disconnections *prometheus.CounterVec
	framesSent     prometheus.Counter
	framesDropped  prometheus.Counter
}

func newHubMetrics(registry *metric.MetricsRegistry) *hubMetrics {
	if registry == nil {
		return nil
	}

	m := &hubMetrics{
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ssohub",
			Subsystem: "ws",
			Name:      "clients_connected",
			Help:      "Currently connected websocket clients",
		}),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ssohub",
			Subsystem: "ws",
			Name:      "connections_total",
			Help:      "Total websocket connections accepted",
		}),
		disconnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ssohub",
			Subsystem: "ws",
			Name:      "disconnections_total",
			Help:      "Websocket disconnections by reason",
		}, []string{"reason"}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ssohub",
			Subsystem: "ws",
			Name:      "frames_sent_total",
			Help:      "Frames delivered to websocket clients",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ssohub",
			Subsystem: "ws",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped because a client's send buffer was full",
		}),
	}

	registry.RegisterGauge("gateway", "ws_clients", m.clients)
	registry.RegisterCounter("gateway", "ws_connections", m.connections)
	registry.RegisterCounterVec("gateway", "ws_disconnections", m.disconnections)
	registry.RegisterCounter("gateway", "ws_frames_sent", m.framesSent)
	registry.RegisterCounter("gateway", "ws_frames_dropped", m.framesDropped)

	return m
}

// Hub fans processed events and execution completions out to websocket
// subscribers. Each client gets a buffered send channel; a client whose
// buffer is full when a frame arrives is dropped so it can never stall
// the broadcast path.
type Hub struct {
	upgrader websocket.Upgrader
	sendBuf  int
	logger   *slog.Logger
	metrics  *hubMetrics

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newHub(sendBuf int, logger *slog.Logger, metrics *hubMetrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sendBuf: sendBuf,
		logger:  logger,
		metrics: metrics,
		clients: make(map[*wsClient]struct{}),
	}
}

// ServeHTTP upgrades the connection and registers the client for the
// live feed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan []byte, h.sendBuf),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.connections.Inc()
		h.metrics.clients.Set(float64(count))
	}
	h.logger.Debug("websocket client connected", "remote", r.RemoteAddr, "clients", count)

	go h.writePump(c)
	go h.readPump(c)
}

// readPump drains the client. Inbound payloads are ignored; the read
// loop exists to process control frames and notice closed connections.
func (h *Hub) readPump(c *wsClient) {
	defer h.drop(c, "read_closed")

	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump owns all writes to the connection. gorilla/websocket does
// not allow concurrent writers, so frames and pings are serialized
// through this single goroutine.
func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.drop(c, "write_error")
				return
			}
			if h.metrics != nil {
				h.metrics.framesSent.Inc()
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c, "ping_failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// drop removes a client and closes its connection. Safe to call from
// any goroutine and any number of times; the send channel is never
// closed so concurrent broadcasts cannot panic.
func (h *Hub) drop(c *wsClient, reason string) {
	c.once.Do(func() {
		h.mu.Lock()
		_, present := h.clients[c]
		delete(h.clients, c)
		count := len(h.clients)
		h.mu.Unlock()

		close(c.done)
		_ = c.conn.Close()

		if present {
			if h.metrics != nil {
				h.metrics.disconnections.WithLabelValues(reason).Inc()
				h.metrics.clients.Set(float64(count))
			}
			h.logger.Debug("websocket client dropped", "reason", reason, "clients", count)
		}
	})
}

// BroadcastEvent pushes a processed event and its execution results.
func (h *Hub) BroadcastEvent(e *event.Event, results []*executor.Result) {
	if e == nil {
		return
	}
	h.broadcast(FrameEvent, EventFrame{Event: e, Results: results})
}

// BroadcastExecution pushes a completed execution.
func (h *Hub) BroadcastExecution(res *executor.Result) {
	if res == nil {
		return
	}
	h.broadcast(FrameExecution, res)
}

func (h *Hub) broadcast(kind string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("websocket payload marshal failed", "kind", kind, "error", err)
		return
	}
	frame, err := json.Marshal(Frame{
		Kind:      kind,
		Timestamp: time.Now().UnixMilli(),
		Payload:   body,
	})
	if err != nil {
		h.logger.Error("websocket frame marshal failed", "kind", kind, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- frame:
		default:
			if h.metrics != nil {
				h.metrics.framesDropped.Inc()
			}
			h.logger.Warn("dropping slow websocket client", "kind", kind)
			h.drop(c, "slow_consumer")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every client and refuses new registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.drop(c, "server_shutdown")
	}
}
