package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/eternisai/maintenance-tracker/internal/logger"
	"github.com/eternisai/maintenance-tracker/internal/metrics"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second

	// sendBuffer is how many events may queue for one watcher before it is
	// dropped as too slow.
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the REST routes only
	},
}

// Notifier delivers change events to whoever is watching.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// peer is one watcher connection. Data frames are written only by the
// connection's ServeWS loop, which drains send; control frames go through
// WriteControl, which gorilla allows concurrently.
type peer struct {
	conn *websocket.Conn
	send chan []byte
	// gone is closed when the peer is unregistered.
	gone chan struct{}
}

func (p *peer) write(data []byte) error {
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *peer) control(messageType int, data []byte) error {
	return p.conn.WriteControl(messageType, data, time.Now().Add(writeTimeout))
}

// Hub fans change events out to every connected websocket watcher.
type Hub struct {
	mu       sync.RWMutex
	peers    map[*websocket.Conn]*peer
	logger   *logger.Logger
	recorder metrics.Recorder
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger, recorder metrics.Recorder) *Hub {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Hub{
		peers:    make(map[*websocket.Conn]*peer),
		logger:   log.WithComponent("events_hub"),
		recorder: recorder,
	}
}

func (h *Hub) register(conn *websocket.Conn) *peer {
	h.mu.Lock()
	defer h.mu.Unlock()

	p := &peer{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		gone: make(chan struct{}),
	}
	h.peers[conn] = p

	h.logger.Debug("watcher connected",
		slog.String("remote_addr", conn.RemoteAddr().String()),
		slog.Int("watchers", len(h.peers)))
	return p
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.peers[conn]
	if !ok {
		return
	}
	delete(h.peers, conn)
	close(p.gone)
	conn.Close()

	h.logger.Debug("watcher disconnected", slog.Int("watchers", len(h.peers)))
}

// Count returns the number of connected watchers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Broadcast queues event for every connected watcher and returns without
// waiting for the writes. A watcher whose queue is full is dropped.
func (h *Hub) Broadcast(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var slow []*websocket.Conn
	h.mu.RLock()
	watchers := len(h.peers)
	for conn, p := range h.peers {
		select {
		case p.send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range slow {
		h.logger.Warn("watcher is not keeping up, dropping it",
			slog.String("type", event.Type),
			slog.String("remote_addr", conn.RemoteAddr().String()))
		h.unregister(conn)
	}

	h.recorder.IncNotification(event.Type)
	h.logger.Debug("event broadcast",
		slog.String("type", event.Type),
		slog.Int64("id", event.ID),
		slog.Int("watchers", watchers))
	return nil
}

// Notify implements Notifier for a single-instance deployment.
func (h *Hub) Notify(ctx context.Context, event Event) {
	if err := h.Broadcast(event); err != nil {
		h.logger.LogError(ctx, err, "failed to broadcast event")
	}
}

// ServeWS upgrades the request and keeps the connection open until the
// client goes away. Clients only receive; anything they send is ignored.
func (h *Hub) ServeWS(c *gin.Context) {
	log := h.logger.WithContext(c.Request.Context())

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	p := h.register(conn)
	defer h.unregister(conn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-p.gone:
			return
		case data := <-p.send:
			if err := p.write(data); err != nil {
				log.Debug("event write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if err := p.control(websocket.PingMessage, nil); err != nil {
				log.Debug("ping failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// Close disconnects every watcher with a normal closure.
func (h *Hub) Close() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[*websocket.Conn]*peer)
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down")
	for conn, p := range peers {
		_ = p.control(websocket.CloseMessage, msg)
		close(p.gone)
		conn.Close()
	}
}
