package database

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const content = `[
  {
    "id": "6f1c2b0e-8d55-4a4e-9d0b-2f1f3c1f6a01",
    "name": "Capitals",
    "game_type": "letters",
    "is_active": true,
    "is_free": true,
    "questions": [
      {"letter": "ب", "question": "Capital of Lebanon", "answer": "Beirut"},
      {"letter": "ب", "variant": "alt1", "question": "Capital of Iraq", "answer": "Baghdad"}
    ]
  },
  {
    "id": "6f1c2b0e-8d55-4a4e-9d0b-2f1f3c1f6a02",
    "name": "Against the clock",
    "game_type": "time",
    "is_active": true,
    "riddles": [
      {"index": 1, "text": "What has keys but no locks?", "answer": "A piano"},
      {"index": 2, "text": "What gets wetter as it dries?", "answer": "A towel"}
    ]
  }
]`

func TestSeedMemory(t *testing.T) {
	ctx := context.Background()
	pkgs, err := ReadSeed(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, pkgs, 2)

	m := NewMemory()
	require.NoError(t, Seed(ctx, m, pkgs))

	letters := uuid.MustParse("6f1c2b0e-8d55-4a4e-9d0b-2f1f3c1f6a01")
	q, err := m.GetLetterQuestion(ctx, letters, "ب", models.VariantMain)
	require.NoError(t, err)
	assert.Equal(t, "Beirut", q.Answer)
	q, err = m.GetLetterQuestion(ctx, letters, "ب", models.VariantAlt1)
	require.NoError(t, err)
	assert.Equal(t, "Baghdad", q.Answer)

	timed := uuid.MustParse("6f1c2b0e-8d55-4a4e-9d0b-2f1f3c1f6a02")
	p, err := m.GetPackage(ctx, timed)
	require.NoError(t, err)
	assert.Equal(t, 2, p.RiddleCount)
	assert.False(t, p.CreatedAt.IsZero())
	r, err := m.GetRiddle(ctx, timed, 2)
	require.NoError(t, err)
	assert.Equal(t, "A towel", r.Answer)
}

func TestSeedRejectsBadContent(t *testing.T) {
	ctx := context.Background()
	_, err := ReadSeed(strings.NewReader(`{"id": 1}`))
	assert.Error(t, err)

	err = Seed(ctx, NewMemory(), []SeedPackage{{Package: models.Package{ID: uuid.New(), GameType: "chess"}}})
	assert.Error(t, err)

	err = Seed(ctx, NewMemory(), []SeedPackage{{
		Package:   models.Package{ID: uuid.New(), GameType: models.GameLetters},
		Questions: []models.LetterQuestion{{Letter: "ب", Variant: "alt9"}},
	}})
	assert.Error(t, err)
}
