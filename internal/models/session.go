package models

import (
	"time"

	"github.com/google/uuid"
)

// Team addresses one of the two score fields of a session.
type Team string

const (
	Team1 Team = "team1"
	Team2 Team = "team2"
)

func (t Team) Valid() bool {
	return t == Team1 || t == Team2
}

// Winner is the final result of a completed session.
type Winner string

const (
	WinnerTeam1 Winner = "team1"
	WinnerTeam2 Winner = "team2"
	WinnerDraw  Winner = "draw"
)

func (w Winner) Valid() bool {
	return w == WinnerTeam1 || w == WinnerTeam2 || w == WinnerDraw
}

// GameSession is one live game instance.
//
// Terminal state is IsActive=false and IsCompleted=true. A completed session is never active.
type GameSession struct {
	ID       uuid.UUID `json:"id"`
	GameType GameType  `json:"game_type"`
	HostID   uuid.UUID `json:"host_id"`

	PackageID  uuid.UUID  `json:"package_id"`
	PurchaseID *uuid.UUID `json:"purchase_id,omitempty"`

	DisplayLink     string `json:"display_link"`
	ContestantsLink string `json:"contestants_link"`

	Team1Name  string  `json:"team1_name"`
	Team2Name  string  `json:"team2_name"`
	Team1Score int     `json:"team1_score"`
	Team2Score int     `json:"team2_score"`
	Winner     *Winner `json:"winner,omitempty"`

	IsActive    bool `json:"is_active"`
	IsCompleted bool `json:"is_completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the session reached its final state.
func (s *GameSession) Terminal() bool {
	return !s.IsActive && s.IsCompleted
}

// Score returns the score of team.
func (s *GameSession) Score(team Team) int {
	if team == Team2 {
		return s.Team2Score
	}
	return s.Team1Score
}

// DeriveWinner compares the two scores.
func (s *GameSession) DeriveWinner() Winner {
	switch {
	case s.Team1Score > s.Team2Score:
		return WinnerTeam1
	case s.Team2Score > s.Team1Score:
		return WinnerTeam2
	default:
		return WinnerDraw
	}
}

// Contestant is a named participant. Names are unique within a session.
type Contestant struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Name      string    `json:"name"`
	Team      Team      `json:"team"`
	IsActive  bool      `json:"is_active"`
	JoinedAt  time.Time `json:"joined_at"`
}

// LinkRole is the audience a link token grants.
type LinkRole string

const (
	RoleDisplay    LinkRole = "display"
	RoleContestant LinkRole = "contestant"
)

// SessionProgress carries the progress record created together with a session.
// Exactly one field is set, matching the session's game type; quiz and imposter have none.
type SessionProgress struct {
	Letters *LettersGameProgress
	Images  *ImagesGameProgress
	Time    *TimeGameProgress
}
