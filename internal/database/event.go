package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/partygames/internal/models"
)

// InsertSessionEvents persists a batch of journal entries in a single transaction.
func (db *Postgres) InsertSessionEvents(ctx context.Context, events []models.SessionEvent) error {
	if len(events) == 0 {
		return nil
	}
	q := `
	INSERT INTO session_events (session_id, event_type, actor_id, payload, occurred_at)
	VALUES ($1, $2, $3, $4::jsonb, $5)
	`
	return pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, ev := range events {
			payload, err := json.Marshal(ev.Payload)
			if err != nil {
				return fmt.Errorf("marshal payload of %s: %w", ev.EventType, err)
			}
			batch.Queue(q, ev.SessionID, ev.EventType, ev.ActorID, string(payload), time.UnixMilli(ev.Timestamp).UTC())
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}
