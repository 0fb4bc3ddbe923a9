package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/eternisai/maintenance-tracker/internal/logger"
)

// changeSubject is the NATS subject change events travel on between backend
// instances.
const changeSubject = "maintenance.requests.changed"

// envelope tags an event with the instance that produced it so the publisher
// can skip its own message.
type envelope struct {
	Event      Event  `json:"event"`
	InstanceID string `json:"instance_id"`
}

// natsConn is the part of *nats.Conn the bridge uses.
type natsConn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Bridge relays change events between backend instances over NATS.
//
// Each instance only holds websocket connections of its own watchers. A
// create on instance A is broadcast to A's watchers directly and published on
// NATS; every other instance receives it and broadcasts to its own watchers.
type Bridge struct {
	nc           natsConn
	hub          *Hub
	logger       *logger.Logger
	instanceID   string
	subscription *nats.Subscription
}

// NewBridge creates a bridge over nc. Returns nil if nc is nil; a nil
// *Bridge is not a usable Notifier, use the Hub directly instead.
func NewBridge(nc *nats.Conn, hub *Hub, log *logger.Logger, instanceID string) *Bridge {
	if nc == nil {
		return nil
	}
	return newBridge(nc, hub, log, instanceID)
}

func newBridge(nc natsConn, hub *Hub, log *logger.Logger, instanceID string) *Bridge {
	return &Bridge{
		nc:         nc,
		hub:        hub,
		logger:     log.WithComponent("events_bridge"),
		instanceID: instanceID,
	}
}

// Start subscribes to change events from other instances.
func (b *Bridge) Start() error {
	sub, err := b.nc.Subscribe(changeSubject, b.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", changeSubject, err)
	}

	b.subscription = sub
	b.logger.Info("events bridge started",
		slog.String("subject", changeSubject),
		slog.String("instance_id", b.instanceID))

	return nil
}

// Stop drains the subscription.
func (b *Bridge) Stop() error {
	if b.subscription != nil {
		if err := b.subscription.Drain(); err != nil {
			return fmt.Errorf("failed to drain subscription: %w", err)
		}
	}
	b.logger.Info("events bridge stopped")
	return nil
}

// Notify broadcasts event to local watchers and publishes it for the other
// instances. A publish failure is logged; local watchers are still notified.
func (b *Bridge) Notify(ctx context.Context, event Event) {
	b.hub.Notify(ctx, event)

	data, err := json.Marshal(envelope{Event: event, InstanceID: b.instanceID})
	if err != nil {
		b.logger.LogError(ctx, err, "failed to marshal event")
		return
	}
	if err := b.nc.Publish(changeSubject, data); err != nil {
		b.logger.LogError(ctx, err, "failed to publish event",
			slog.String("subject", changeSubject))
	}
}

func (b *Bridge) handleMessage(msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		b.logger.Warn("received invalid change event", slog.String("error", err.Error()))
		return
	}
	if env.InstanceID == b.instanceID {
		return
	}

	b.logger.Debug("received change event",
		slog.String("type", env.Event.Type),
		slog.String("from_instance", env.InstanceID))

	if err := b.hub.Broadcast(env.Event); err != nil {
		b.logger.Warn("failed to relay change event", slog.String("error", err.Error()))
	}
}
