package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/partygames/internal/models"
)

// AddContestant inserts a contestant. A duplicate name within the session maps to
// conflict/contestant_name_taken.
func (db *Postgres) AddContestant(ctx context.Context, c *models.Contestant) error {
	if c.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate contestant id: %w", err)
		}
		c.ID = id
	}
	q := `INSERT INTO contestants (id, session_id, name, team, is_active, joined_at)
	      VALUES ($1, $2, $3, $4, $5, $6)`
	err := pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, c.ID, c.SessionID, c.Name, string(c.Team), c.IsActive, c.JoinedAt)
		return execErr
	})
	return mapError(err, "")
}

func (db *Postgres) ListContestants(ctx context.Context, sessionID uuid.UUID) ([]models.Contestant, error) {
	q := `SELECT id, session_id, name, team, is_active, joined_at
	      FROM contestants WHERE session_id=$1 ORDER BY joined_at, name`
	rows, err := db.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Contestant
	for rows.Next() {
		var c models.Contestant
		var team string
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Name, &team, &c.IsActive, &c.JoinedAt); err != nil {
			return nil, err
		}
		c.Team = models.Team(team)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeactivateContestant flags a contestant inactive. Contestants are never deleted mid-session.
// It reports whether a matching row existed.
func (db *Postgres) DeactivateContestant(ctx context.Context, sessionID, contestantID uuid.UUID) (bool, error) {
	q := `UPDATE contestants SET is_active=FALSE WHERE id=$1 AND session_id=$2`
	tag, err := db.pool.Exec(ctx, q, contestantID, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
