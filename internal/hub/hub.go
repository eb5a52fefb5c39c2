// Package hub fans session events out to every connected socket of a session.
//
// Delivery is best-effort and at-most-once per socket. Nothing is persisted or replayed:
// a socket that joins after a publish never sees it and must pull a snapshot instead.
package hub

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the per-client outbound queue length.
const DefaultBuffer = 32

// Publisher is how transitions announce themselves.
type Publisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, ev Event) error
}

// Client is a single socket's presence in a group.
type Client struct {
	ID      uuid.UUID
	Role    models.LinkRole
	Name    string
	OutChan chan Event

	done      chan struct{}
	closeOnce sync.Once
	logger    logrus.FieldLogger
}

func NewClient(role models.LinkRole, name string, buffer int, logger logrus.FieldLogger) *Client {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Client{
		ID:      uuid.New(),
		Role:    role,
		Name:    name,
		OutChan: make(chan Event, buffer),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Write pushes ev onto OutChan without blocking. A full queue or a closed client drops
// the event and logs it; the publisher never sees an error.
func (c *Client) Write(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.OutChan <- ev:
		return true
	default:
		c.logger.WithFields(logrus.Fields{
			"client_id":  c.ID,
			"session_id": ev.SessionID,
			"type":       ev.Type,
		}).Warn("client queue full, dropped event")
		return false
	}
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close stops further deliveries. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub holds one group of clients per session id.
type Hub struct {
	mu     sync.RWMutex
	groups map[uuid.UUID]map[*Client]struct{}
	logger logrus.FieldLogger
}

func New(logger logrus.FieldLogger) *Hub {
	return &Hub{
		groups: make(map[uuid.UUID]map[*Client]struct{}),
		logger: logger,
	}
}

// Join adds c to the session group.
func (h *Hub) Join(sessionID uuid.UUID, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[sessionID]
	if !ok {
		g = make(map[*Client]struct{})
		h.groups[sessionID] = g
	}
	g[c] = struct{}{}
	h.logger.WithFields(logrus.Fields{"session_id": sessionID, "client_id": c.ID, "role": c.Role}).Debug("joined group")
}

// Leave removes c from the session group. Leaving a group one is not in is a no-op.
func (h *Hub) Leave(sessionID uuid.UUID, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[sessionID]
	if !ok {
		return
	}
	if _, member := g[c]; !member {
		return
	}
	delete(g, c)
	if len(g) == 0 {
		delete(h.groups, sessionID)
	}
}

// Publish delivers ev to every client currently in the group, the sender included.
// Events from one publisher reach each client in publish order.
func (h *Hub) Publish(_ context.Context, sessionID uuid.UUID, ev Event) error {
	ev.SessionID = sessionID

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.groups[sessionID] {
		c.Write(ev)
	}
	return nil
}

// GroupSize reports how many clients are joined to the session.
func (h *Hub) GroupSize(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[sessionID])
}
