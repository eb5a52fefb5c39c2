package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list the historian drains.
const DefaultQueueName = "partygames_events"

// EventQueue appends session journal entries to a Redis list.
type EventQueue struct {
	rdb  redis.Cmdable
	name string
}

func NewEventQueue(rdb redis.Cmdable, name string) *EventQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &EventQueue{rdb: rdb, name: name}
}

// Name is the list key.
func (q *EventQueue) Name() string { return q.name }

// Record serializes the event to JSON and pushes it to the queue.
// This does not block the caller beyond a quick network send.
func (q *EventQueue) Record(ctx context.Context, ev models.SessionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal SessionEvent: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}
