package models

import (
	"time"

	"github.com/google/uuid"
)

// GameType is the kind of game a package or session plays.
type GameType string

const (
	GameLetters  GameType = "letters"
	GameImages   GameType = "images"
	GameTime     GameType = "time"
	GameQuiz     GameType = "quiz"
	GameImposter GameType = "imposter"
)

func (g GameType) Valid() bool {
	switch g {
	case GameLetters, GameImages, GameTime, GameQuiz, GameImposter:
		return true
	}
	return false
}

// Package is a read-only bundle of game content. The core never mutates packages.
type Package struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	GameType GameType  `json:"game_type"`
	IsActive bool      `json:"is_active"`
	IsFree   bool      `json:"is_free"`

	// RiddleCount bounds the Time-Challenge riddle index, ImageCount the Images index.
	RiddleCount int `json:"riddle_count"`
	ImageCount  int `json:"image_count"`

	CreatedAt time.Time `json:"created_at"`
}

// Variant selects one of the question texts stored for a letter.
type Variant string

const (
	VariantMain Variant = "main"
	VariantAlt1 Variant = "alt1"
	VariantAlt2 Variant = "alt2"
	VariantAlt3 Variant = "alt3"
	VariantAlt4 Variant = "alt4"
)

func (v Variant) Valid() bool {
	switch v {
	case VariantMain, VariantAlt1, VariantAlt2, VariantAlt3, VariantAlt4:
		return true
	}
	return false
}

// LetterQuestion is keyed by (package, letter, variant).
type LetterQuestion struct {
	PackageID uuid.UUID `json:"package_id"`
	Letter    string    `json:"letter"`
	Variant   Variant   `json:"variant"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer,omitempty"`
}

// Riddle is a Time-Challenge prompt at a 1-based index within its package.
type Riddle struct {
	PackageID uuid.UUID `json:"package_id"`
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Answer    string    `json:"answer,omitempty"`
}
