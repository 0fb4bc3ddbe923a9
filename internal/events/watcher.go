package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eternisai/maintenance-tracker/internal/logger"
	"github.com/eternisai/maintenance-tracker/internal/metrics"
)

// EventsPath is where the backend serves the change-event websocket.
const EventsPath = "/api/events"

const (
	minReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay = 30 * time.Second
)

// EventsURL derives the websocket URL from an http(s) backend base URL.
func EventsURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + EventsPath
}

// Watcher receives change events from the backend and reconnects when the
// connection drops.
type Watcher struct {
	url      string
	dialer   *websocket.Dialer
	logger   *logger.Logger
	recorder metrics.Recorder
}

// NewWatcher creates a watcher for the websocket at url.
func NewWatcher(url string, log *logger.Logger, recorder metrics.Recorder) *Watcher {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Watcher{
		url:      url,
		dialer:   &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		logger:   log.WithComponent("events_watcher"),
		recorder: recorder,
	}
}

// Run calls onEvent for every event received until ctx is done. Connection
// failures are retried with exponential backoff.
func (w *Watcher) Run(ctx context.Context, onEvent func(Event)) error {
	delay := minReconnectDelay
	for {
		connected, err := w.session(ctx, onEvent)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = minReconnectDelay
		}

		w.logger.Warn("event stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// session holds a single connection open. It reports whether the dial
// succeeded and the error that ended it.
func (w *Watcher) session(ctx context.Context, onEvent func(Event)) (bool, error) {
	conn, resp, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return false, fmt.Errorf("dial %s: status %d: %w", w.url, resp.StatusCode, err)
		}
		return false, fmt.Errorf("dial %s: %w", w.url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	w.logger.Info("watching backend events", slog.String("url", w.url))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return true, errors.New("server closed the event stream")
			}
			return true, err
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			w.logger.Debug("ignoring malformed event", slog.String("error", err.Error()))
			continue
		}

		w.recorder.IncNotification(event.Type)
		onEvent(event)
	}
}
