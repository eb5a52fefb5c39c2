package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/clock"
)

// CellState is the board state of one letter cell.
type CellState string

const (
	CellUnrevealed CellState = "unrevealed"
	CellRevealed   CellState = "revealed"
	CellAnswered   CellState = "answered"
)

// Cell is one entry of the Letters board. Team is set once the cell is answered.
type Cell struct {
	State CellState `json:"state"`
	Team  Team      `json:"team,omitempty"`
}

// LettersGameProgress is owned by a letters session and only mutated by the session service.
type LettersGameProgress struct {
	SessionID      uuid.UUID       `json:"session_id"`
	CellStates     map[string]Cell `json:"cell_states"`
	UsedLetters    []string        `json:"used_letters"`
	CurrentLetter  string          `json:"current_letter,omitempty"`
	CurrentVariant Variant         `json:"current_variant,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsUsed reports whether letter was already selected.
func (p *LettersGameProgress) IsUsed(letter string) bool {
	for _, l := range p.UsedLetters {
		if l == letter {
			return true
		}
	}
	return false
}

// CellOf returns the state of a cell, unrevealed when absent.
func (p *LettersGameProgress) CellOf(letter string) Cell {
	if c, ok := p.CellStates[letter]; ok {
		return c
	}
	return Cell{State: CellUnrevealed}
}

// ImagesGameProgress tracks the 1-based image index of an images session.
type ImagesGameProgress struct {
	SessionID    uuid.UUID `json:"session_id"`
	CurrentIndex int       `json:"current_index"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TimeGameProgress is the Time-Challenge record. Version is bumped on every write
// and used as a compare-and-set token.
type TimeGameProgress struct {
	SessionID          uuid.UUID   `json:"session_id"`
	CurrentRiddleIndex int         `json:"current_riddle_index"`
	Clock              clock.Clock `json:"clock"`
	Version            int64       `json:"version"`
	UpdatedAt          time.Time   `json:"updated_at"`
}
