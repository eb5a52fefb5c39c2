package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/clock"
	"github.com/jason-s-yu/partygames/internal/models"
)

const lettersColumns = `session_id, cell_states, used_letters, current_letter, current_variant, updated_at`

func scanLetters(row rowScanner) (*models.LettersGameProgress, error) {
	var p models.LettersGameProgress
	var variant string
	if err := row.Scan(&p.SessionID, &p.CellStates, &p.UsedLetters, &p.CurrentLetter, &variant, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CurrentVariant = models.Variant(variant)
	if p.CellStates == nil {
		p.CellStates = map[string]models.Cell{}
	}
	return &p, nil
}

func (db *Postgres) GetLettersProgress(ctx context.Context, sessionID uuid.UUID) (*models.LettersGameProgress, error) {
	q := `SELECT ` + lettersColumns + ` FROM letters_progress WHERE session_id=$1`
	p, err := scanLetters(db.pool.QueryRow(ctx, q, sessionID))
	if err != nil {
		return nil, mapError(err, apperror.ReasonProgressNotFound)
	}
	return p, nil
}

// MarkLetterUsed appends letter to used_letters, points the current letter at it and reveals
// its cell, all in one statement conditioned on the letter not being used yet.
// Losing that condition returns conflict/letter_already_used.
func (db *Postgres) MarkLetterUsed(ctx context.Context, sessionID uuid.UUID, letter string, variant models.Variant, at time.Time) (*models.LettersGameProgress, error) {
	q := `
	UPDATE letters_progress
	SET used_letters = array_append(used_letters, $2::text),
	    current_letter = $2,
	    current_variant = $3,
	    cell_states = cell_states || jsonb_build_object($2::text, jsonb_build_object('state', 'revealed')),
	    updated_at = $4
	WHERE session_id=$1 AND NOT ($2::text = ANY(used_letters))
	RETURNING ` + lettersColumns
	p, err := scanLetters(db.pool.QueryRow(ctx, q, sessionID, letter, string(variant), at))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, getErr := db.GetLettersProgress(ctx, sessionID); getErr != nil {
		return nil, getErr
	}
	return nil, apperror.Conflict(apperror.ReasonLetterAlreadyUsed, "letter %q already used", letter)
}

// SetCell replaces the state of one cell.
func (db *Postgres) SetCell(ctx context.Context, sessionID uuid.UUID, letter string, cell models.Cell, at time.Time) (*models.LettersGameProgress, error) {
	raw, err := json.Marshal(cell)
	if err != nil {
		return nil, fmt.Errorf("marshal cell: %w", err)
	}
	q := `
	UPDATE letters_progress
	SET cell_states = cell_states || jsonb_build_object($2::text, $3::jsonb), updated_at = $4
	WHERE session_id=$1
	RETURNING ` + lettersColumns
	p, err := scanLetters(db.pool.QueryRow(ctx, q, sessionID, letter, string(raw), at))
	if err != nil {
		return nil, mapError(err, apperror.ReasonProgressNotFound)
	}
	return p, nil
}

func (db *Postgres) GetImagesProgress(ctx context.Context, sessionID uuid.UUID) (*models.ImagesGameProgress, error) {
	var p models.ImagesGameProgress
	q := `SELECT session_id, current_index, updated_at FROM images_progress WHERE session_id=$1`
	if err := db.pool.QueryRow(ctx, q, sessionID).Scan(&p.SessionID, &p.CurrentIndex, &p.UpdatedAt); err != nil {
		return nil, mapError(err, apperror.ReasonProgressNotFound)
	}
	return &p, nil
}

// SetImageIndex moves the index from one value to another; a concurrent move
// makes it return conflict/stale_write.
func (db *Postgres) SetImageIndex(ctx context.Context, sessionID uuid.UUID, from, to int, at time.Time) (*models.ImagesGameProgress, error) {
	var p models.ImagesGameProgress
	q := `
	UPDATE images_progress SET current_index=$3, updated_at=$4
	WHERE session_id=$1 AND current_index=$2
	RETURNING session_id, current_index, updated_at
	`
	err := db.pool.QueryRow(ctx, q, sessionID, from, to, at).Scan(&p.SessionID, &p.CurrentIndex, &p.UpdatedAt)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, getErr := db.GetImagesProgress(ctx, sessionID); getErr != nil {
		return nil, getErr
	}
	return nil, apperror.Conflict(apperror.ReasonStaleWrite, "image index moved concurrently")
}

const timeColumns = `session_id, current_riddle_index, current_side, a_time_left_seconds, b_time_left_seconds,
	is_running, last_started_at, version, updated_at`

func (db *Postgres) GetTimeProgress(ctx context.Context, sessionID uuid.UUID) (*models.TimeGameProgress, error) {
	var p models.TimeGameProgress
	var side string
	q := `SELECT ` + timeColumns + ` FROM time_progress WHERE session_id=$1`
	err := db.pool.QueryRow(ctx, q, sessionID).Scan(
		&p.SessionID, &p.CurrentRiddleIndex, &side, &p.Clock.ATimeLeft, &p.Clock.BTimeLeft,
		&p.Clock.IsRunning, &p.Clock.LastStartedAt, &p.Version, &p.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err, apperror.ReasonProgressNotFound)
	}
	p.Clock.CurrentSide = clock.Side(side)
	return &p, nil
}

// SaveTimeProgress writes the clock and riddle index if the stored version still equals
// p.Version, then bumps p.Version. A mismatch returns conflict/stale_write.
func (db *Postgres) SaveTimeProgress(ctx context.Context, p *models.TimeGameProgress) error {
	q := `
	UPDATE time_progress
	SET current_riddle_index=$3, current_side=$4, a_time_left_seconds=$5, b_time_left_seconds=$6,
	    is_running=$7, last_started_at=$8, version=version+1, updated_at=$9
	WHERE session_id=$1 AND version=$2
	`
	tag, err := db.pool.Exec(ctx, q,
		p.SessionID, p.Version, p.CurrentRiddleIndex, string(p.Clock.CurrentSide),
		p.Clock.ATimeLeft, p.Clock.BTimeLeft, p.Clock.IsRunning, p.Clock.LastStartedAt, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := db.GetTimeProgress(ctx, p.SessionID); getErr != nil {
			return getErr
		}
		return apperror.Conflict(apperror.ReasonStaleWrite, "time progress changed concurrently")
	}
	p.Version++
	return nil
}
