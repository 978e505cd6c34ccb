// Package stream broadcasts delivered results to WebSocket clients.
package stream

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/bridge"
	"github.com/ayusman/mudra/internal/wire"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// clientQueueSize bounds the per-client send queue. Publishers drop
// messages for a client whose queue is full instead of blocking.
const clientQueueSize = 16

// Hub fans delivered results out to connected WebSocket clients as JSON.
// Results are published from whichever goroutine delivered them (engine
// result goroutines for the async path, the caller's goroutine for the
// sync path), so publishers never write to a connection directly: each
// client has a buffered send queue drained by a single writer goroutine.
type Hub struct {
	log     *logrus.Logger
	mu      sync.RWMutex
	clients map[*hubClient]bool
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// writePump is the only goroutine that writes to the connection. It runs
// until the send queue is closed or a write fails.
func (c *hubClient) writePump() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// NewHub creates a Hub.
func NewHub(log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		log:     log,
		clients: make(map[*hubClient]bool),
	}
}

// ServeHTTP handles WebSocket upgrade requests and keeps the connection
// registered until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	client := &hubClient{
		conn: conn,
		send: make(chan []byte, clientQueueSize),
	}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	go client.writePump()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		// No publisher can reach the client once it is unregistered, so
		// closing the queue here cannot race a send.
		close(client.send)
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishLandmarks broadcasts a decoded landmark buffer.
func (h *Hub) PublishLandmarks(buf []float32, timestampMs int64) {
	h.publish(wire.DecodeLandmarks(buf), timestampMs)
}

// PublishGestures broadcasts a decoded gesture buffer.
func (h *Hub) PublishGestures(buf []float32, gestures []string, timestampMs int64) {
	h.publish(wire.DecodeGestures(buf, gestures), timestampMs)
}

func (h *Hub) publish(hands []wire.Hand, timestampMs int64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(map[string]any{
		"hands":     hands,
		"timestamp": timestampMs,
	})
	if err != nil {
		h.log.WithError(err).Warn("marshal broadcast message")
		return
	}

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Queue full: drop for this client rather than block the
			// delivery path.
		}
	}
}

// WrapLandmarks returns a landmark callback that broadcasts each delivery
// and then invokes cb.
func (h *Hub) WrapLandmarks(cb bridge.LandmarkCallback) bridge.LandmarkCallback {
	return func(buf []float32, timestampMs int64) {
		h.PublishLandmarks(buf, timestampMs)
		if cb != nil {
			cb(buf, timestampMs)
		}
	}
}

// WrapGestures returns a gesture callback that broadcasts each delivery
// and then invokes cb.
func (h *Hub) WrapGestures(cb bridge.GestureCallback) bridge.GestureCallback {
	return func(buf []float32, gestures []string, timestampMs int64) {
		h.PublishGestures(buf, gestures, timestampMs)
		if cb != nil {
			cb(buf, gestures, timestampMs)
		}
	}
}
