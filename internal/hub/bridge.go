package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ChannelPrefix namespaces the per-session pub/sub channels.
const ChannelPrefix = "partygames:session:"

// Channel is the pub/sub channel of a session.
func Channel(sessionID uuid.UUID) string {
	return ChannelPrefix + sessionID.String()
}

// RedisBridge publishes events through Redis so every server process relays them to its
// own sockets. Publish only sends to Redis; local delivery happens when the message comes
// back through the subscription, which keeps a single order per session channel.
type RedisBridge struct {
	rdb    redis.UniversalClient
	hub    *Hub
	logger logrus.FieldLogger
}

func NewRedisBridge(rdb redis.UniversalClient, h *Hub, logger logrus.FieldLogger) *RedisBridge {
	return &RedisBridge{rdb: rdb, hub: h, logger: logger}
}

func (b *RedisBridge) Publish(ctx context.Context, sessionID uuid.UUID, ev Event) error {
	ev.SessionID = sessionID
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, Channel(sessionID), data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", Channel(sessionID), err)
	}
	return nil
}

// Subscription is a confirmed pattern subscription waiting to be relayed.
type Subscription struct {
	ps     *redis.PubSub
	bridge *RedisBridge
}

// Subscribe starts listening on every session channel and returns once Redis confirms.
func (b *RedisBridge) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := b.rdb.PSubscribe(ctx, ChannelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("psubscribe %s*: %w", ChannelPrefix, err)
	}
	return &Subscription{ps: ps, bridge: b}, nil
}

// Relay forwards received messages into the local hub until ctx ends.
func (s *Subscription) Relay(ctx context.Context) error {
	defer s.ps.Close()
	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.bridge.relay(ctx, msg)
		}
	}
}

// Run subscribes and relays until ctx ends.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub, err := b.Subscribe(ctx)
	if err != nil {
		return err
	}
	b.logger.Info("hub bridge listening")
	return sub.Relay(ctx)
}

func (b *RedisBridge) relay(ctx context.Context, msg *redis.Message) {
	sessionID, err := uuid.Parse(strings.TrimPrefix(msg.Channel, ChannelPrefix))
	if err != nil {
		b.logger.WithField("channel", msg.Channel).Warn("ignoring message on malformed channel")
		return
	}
	var ev Event
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		b.logger.WithError(err).WithField("session_id", sessionID).Warn("ignoring malformed event")
		return
	}
	_ = b.hub.Publish(ctx, sessionID, ev)
}
