package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/models"
)

const sessionColumns = `id, game_type, host_id, package_id, purchase_id, display_link, contestants_link,
	team1_name, team2_name, team1_score, team2_score, winner, is_active, is_completed, created_at, updated_at`

func scanSession(row rowScanner) (*models.GameSession, error) {
	var s models.GameSession
	var gameType string
	var winner *string
	err := row.Scan(
		&s.ID, &gameType, &s.HostID, &s.PackageID, &s.PurchaseID, &s.DisplayLink, &s.ContestantsLink,
		&s.Team1Name, &s.Team2Name, &s.Team1Score, &s.Team2Score, &winner,
		&s.IsActive, &s.IsCompleted, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.GameType = models.GameType(gameType)
	if winner != nil {
		w := models.Winner(*winner)
		s.Winner = &w
	}
	return &s, nil
}

func winnerParam(w *models.Winner) *string {
	if w == nil {
		return nil
	}
	s := string(*w)
	return &s
}

// CreateSession inserts the session and its progress record in one transaction.
// Link collisions map to conflict/link_collision, a reused purchase to conflict/purchase_in_use.
func (db *Postgres) CreateSession(ctx context.Context, s *models.GameSession, progress models.SessionProgress) error {
	insertSession := `INSERT INTO game_sessions (` + sessionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	err := pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertSession,
			s.ID, string(s.GameType), s.HostID, s.PackageID, s.PurchaseID, s.DisplayLink, s.ContestantsLink,
			s.Team1Name, s.Team2Name, s.Team1Score, s.Team2Score, winnerParam(s.Winner),
			s.IsActive, s.IsCompleted, s.CreatedAt, s.UpdatedAt,
		); err != nil {
			return err
		}

		switch {
		case progress.Letters != nil:
			p := progress.Letters
			cells, err := json.Marshal(p.CellStates)
			if err != nil {
				return fmt.Errorf("marshal cell states: %w", err)
			}
			used := p.UsedLetters
			if used == nil {
				used = []string{}
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO letters_progress (session_id, cell_states, used_letters, current_letter, current_variant, updated_at)
				VALUES ($1, $2::jsonb, $3, $4, $5, $6)`,
				s.ID, string(cells), used, p.CurrentLetter, string(p.CurrentVariant), p.UpdatedAt,
			)
			return err
		case progress.Images != nil:
			_, err := tx.Exec(ctx, `
				INSERT INTO images_progress (session_id, current_index, updated_at)
				VALUES ($1, $2, $3)`,
				s.ID, progress.Images.CurrentIndex, progress.Images.UpdatedAt,
			)
			return err
		case progress.Time != nil:
			p := progress.Time
			_, err := tx.Exec(ctx, `
				INSERT INTO time_progress (session_id, current_riddle_index, current_side, a_time_left_seconds,
					b_time_left_seconds, is_running, last_started_at, version, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				s.ID, p.CurrentRiddleIndex, string(p.Clock.CurrentSide), p.Clock.ATimeLeft,
				p.Clock.BTimeLeft, p.Clock.IsRunning, p.Clock.LastStartedAt, p.Version, p.UpdatedAt,
			)
			return err
		}
		return nil
	})
	return mapError(err, "")
}

func (db *Postgres) GetSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM game_sessions WHERE id=$1`
	s, err := scanSession(db.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, mapError(err, apperror.ReasonSessionNotFound)
	}
	return s, nil
}

// FindSessionByLink resolves either link token and reports which one matched.
func (db *Postgres) FindSessionByLink(ctx context.Context, token string) (*models.GameSession, models.LinkRole, error) {
	q := `SELECT ` + sessionColumns + ` FROM game_sessions WHERE display_link=$1 OR contestants_link=$1`
	s, err := scanSession(db.pool.QueryRow(ctx, q, token))
	if err != nil {
		return nil, "", mapError(err, apperror.ReasonLinkNotFound)
	}
	if s.DisplayLink == token {
		return s, models.RoleDisplay, nil
	}
	return s, models.RoleContestant, nil
}

// CompleteSession moves a session to inactive+completed unless it already is completed.
// A nil winner keeps the stored one. It reports whether this call made the transition.
func (db *Postgres) CompleteSession(ctx context.Context, id uuid.UUID, winner *models.Winner, at time.Time) (bool, error) {
	q := `
	UPDATE game_sessions
	SET is_active=FALSE, is_completed=TRUE, winner=COALESCE($2, winner), updated_at=$3
	WHERE id=$1 AND NOT is_completed
	`
	tag, err := db.pool.Exec(ctx, q, id, winnerParam(winner), at)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := db.GetSession(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// DeactivateSession clears the active flag without completing the session.
func (db *Postgres) DeactivateSession(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	q := `UPDATE game_sessions SET is_active=FALSE, updated_at=$2 WHERE id=$1 AND is_active`
	tag, err := db.pool.Exec(ctx, q, id, at)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := db.GetSession(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// AddScore applies delta to a team's score in one statement, clamped at zero.
// Only active sessions accept score changes.
func (db *Postgres) AddScore(ctx context.Context, id uuid.UUID, team models.Team, delta int, at time.Time) (*models.GameSession, error) {
	column := "team1_score"
	if team == models.Team2 {
		column = "team2_score"
	}
	q := `UPDATE game_sessions SET ` + column + `=GREATEST(0, ` + column + ` + $2), updated_at=$3
	WHERE id=$1 AND is_active
	RETURNING ` + sessionColumns
	s, err := scanSession(db.pool.QueryRow(ctx, q, id, delta, at))
	if err == nil {
		return s, nil
	}
	if mapped := mapError(err, apperror.ReasonSessionNotFound); apperror.KindOf(mapped) == apperror.KindNotFound {
		if _, getErr := db.GetSession(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, apperror.Conflict(apperror.ReasonSessionInactive, "session %s is not active", id)
	}
	return nil, err
}

// ExpiryCandidates bounds a sweep query. The service still decides each row with the policy.
type ExpiryCandidates struct {
	Now               time.Time
	FreeCreatedBefore time.Time
	PurchasedBefore   time.Time
	Limit             int
}

// ListExpirableSessions returns non-completed sessions that may have crossed their window.
func (db *Postgres) ListExpirableSessions(ctx context.Context, c ExpiryCandidates) ([]models.GameSession, error) {
	q := `
	SELECT ` + prefixed("s.", sessionColumns) + `
	FROM game_sessions s
	LEFT JOIN user_purchases p ON p.id = s.purchase_id
	WHERE NOT s.is_completed
	  AND (
		(s.purchase_id IS NULL AND s.game_type IN ('letters', 'images') AND s.created_at <= $2)
		OR (s.purchase_id IS NOT NULL AND (p.expires_at <= $1 OR (p.expires_at IS NULL AND p.purchased_at <= $3)))
	  )
	ORDER BY s.created_at
	LIMIT $4
	`
	rows, err := db.pool.Query(ctx, q, c.Now, c.FreeCreatedBefore, c.PurchasedBefore, c.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GameSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
