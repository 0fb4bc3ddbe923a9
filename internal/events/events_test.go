package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/eternisai/maintenance-tracker/internal/logger"
)

func setupHubServer(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(logger.Discard(), nil)
	return hub, serveHub(t, hub)
}

func dialWatcher(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(EventsURL(baseURL), nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d watchers, want %d", hub.Count(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("decode event %q: %v", data, err)
	}
	return event
}

func TestEventsURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{base: "http://localhost:8000", want: "ws://localhost:8000/api/events"},
		{base: "https://mrt.example.com/", want: "wss://mrt.example.com/api/events"},
		{base: "ws://127.0.0.1:9000", want: "ws://127.0.0.1:9000/api/events"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			if got := EventsURL(tt.base); got != tt.want {
				t.Errorf("EventsURL(%q) = %q, want %q", tt.base, got, tt.want)
			}
		})
	}
}

func TestHubBroadcastReachesEveryWatcher(t *testing.T) {
	hub, url := setupHubServer(t)

	first := dialWatcher(t, url)
	second := dialWatcher(t, url)
	waitForCount(t, hub, 2)

	if err := hub.Broadcast(RequestsChanged(7)); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	want := Event{Type: TypeRequestsChanged, ID: 7}
	for i, conn := range []*websocket.Conn{first, second} {
		if diff := cmp.Diff(want, readEvent(t, conn)); diff != "" {
			t.Errorf("watcher %d event mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestHubBroadcastDoesNotWaitForStalledWatcher(t *testing.T) {
	hub, url := setupHubServer(t)
	healthy := dialWatcher(t, url)
	waitForCount(t, hub, 1)

	// Registered without a ServeWS loop, this watcher never drains its queue.
	upgraded := make(chan *websocket.Conn, 1)
	raw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		upgraded <- conn
	}))
	t.Cleanup(raw.Close)
	stalled := dialWatcher(t, raw.URL)
	select {
	case conn := <-upgraded:
		hub.register(conn)
	case <-time.After(5 * time.Second):
		t.Fatal("stalled watcher was never upgraded")
	}
	waitForCount(t, hub, 2)

	broadcast := func(id int64) {
		t.Helper()
		start := time.Now()
		if err := hub.Broadcast(RequestsChanged(id)); err != nil {
			t.Fatalf("Broadcast() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("Broadcast() took %v with a stalled watcher", elapsed)
		}
	}

	for id := int64(1); id <= sendBuffer; id++ {
		broadcast(id)
	}
	for id := int64(1); id <= sendBuffer; id++ {
		if got := readEvent(t, healthy); got.ID != id {
			t.Fatalf("healthy watcher got id %d, want %d", got.ID, id)
		}
	}
	if hub.Count() != 2 {
		t.Fatalf("Count() = %d before the queue overflowed, want 2", hub.Count())
	}

	broadcast(sendBuffer + 1)
	waitForCount(t, hub, 1)
	if got := readEvent(t, healthy); got.ID != sendBuffer+1 {
		t.Errorf("healthy watcher got id %d, want %d", got.ID, sendBuffer+1)
	}

	stalled.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := stalled.ReadMessage(); err == nil {
		t.Error("dropped watcher should see its connection closed")
	}
}

func TestHubForgetsDisconnectedWatcher(t *testing.T) {
	hub, url := setupHubServer(t)

	conn := dialWatcher(t, url)
	waitForCount(t, hub, 1)

	conn.Close()
	waitForCount(t, hub, 0)

	if err := hub.Broadcast(RequestsChanged(1)); err != nil {
		t.Errorf("Broadcast() with no watchers error = %v", err)
	}
}

func TestHubCloseDisconnectsWatchers(t *testing.T) {
	hub, url := setupHubServer(t)

	conn := dialWatcher(t, url)
	waitForCount(t, hub, 1)

	hub.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("ReadMessage() error = %v, want normal closure", err)
	}
	if hub.Count() != 0 {
		t.Errorf("Count() = %d after Close, want 0", hub.Count())
	}
}

func TestWatcherDeliversEvents(t *testing.T) {
	hub, url := setupHubServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Event, 4)
	done := make(chan error, 1)
	w := NewWatcher(EventsURL(url), logger.Discard(), nil)
	go func() {
		done <- w.Run(ctx, func(e Event) { received <- e })
	}()

	waitForCount(t, hub, 1)
	hub.Notify(context.Background(), RequestsChanged(42))

	select {
	case got := <-received:
		if got.Type != TypeRequestsChanged || got.ID != 42 {
			t.Errorf("got event %+v, want requests.changed for 42", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not deliver the event")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcherStopsWhileRetrying(t *testing.T) {
	server := httptest.NewServer(gin.New())
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/nowhere"
	server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w := NewWatcher(url, logger.Discard(), nil)
	err := w.Run(ctx, func(Event) { t.Error("unexpected event") })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() = %v, want context.DeadlineExceeded", err)
	}
}

func TestNewBridgeWithoutConnection(t *testing.T) {
	hub := NewHub(logger.Discard(), nil)
	if b := NewBridge(nil, hub, logger.Discard(), "instance-1"); b != nil {
		t.Errorf("NewBridge(nil) = %v, want nil", b)
	}
}
