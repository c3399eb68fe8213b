package serve

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/thought"
)

// clientBuffer is the per-client send queue depth. A client that cannot
// keep up is disconnected rather than allowed to stall the broadcaster.
const clientBuffer = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API binds to loopback by default; cross-origin dashboards are
	// expected.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans thinking records out to connected websocket clients.
type Hub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[chan []byte]struct{}
	closed  bool
}

// NewHub builds an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:     log,
		clients: make(map[chan []byte]struct{}),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends one record to every connected client. Slow clients are
// dropped.
func (h *Hub) Broadcast(rec thought.ThinkingRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		h.log.Error("marshal record for broadcast", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- payload:
		default:
			h.log.Warn("dropping slow websocket client")
			close(ch)
			delete(h.clients, ch)
		}
	}
}

// Close disconnects every client and rejects future registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.clients {
		close(ch)
		delete(h.clients, ch)
	}
}

func (h *Hub) register() (chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan []byte, clientBuffer)
	h.clients[ch] = struct{}{}
	return ch, true
}

func (h *Hub) unregister(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		close(ch)
		delete(h.clients, ch)
	}
}

// handleEvents upgrades the connection and streams records until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, ok := s.hub.register()
	if !ok {
		return
	}
	defer s.hub.unregister(ch)

	// Reader goroutine: only control frames are expected; the read loop
	// detects disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case payload, open := <-ch:
			if !open {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"),
					time.Now().Add(time.Second))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// BroadcastSink mirrors records to the hub and then to next. It keeps the
// archive and the event stream fed from the single orchestra-side append.
type BroadcastSink struct {
	Hub  *Hub
	Next thought.RecordSink
}

// Append implements thought.RecordSink.
func (b BroadcastSink) Append(rec thought.ThinkingRecord) error {
	b.Hub.Broadcast(rec)
	if b.Next != nil {
		return b.Next.Append(rec)
	}
	return nil
}
