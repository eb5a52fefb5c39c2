package models

import "github.com/google/uuid"

// SessionEvent is one journal entry of a successful session transition.
// It travels through the Redis queue to the historian as JSON.
type SessionEvent struct {
	SessionID uuid.UUID              `json:"session_id"`
	EventType string                 `json:"event_type"`
	ActorID   *uuid.UUID             `json:"actor_id,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp int64                  `json:"timestamp"` // epoch millis
}
