package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/models"
)

// GetPackage fetches a catalog package by ID.
func (db *Postgres) GetPackage(ctx context.Context, id uuid.UUID) (*models.Package, error) {
	var p models.Package
	var gameType string
	q := `
	SELECT id, name, game_type, is_active, is_free, riddle_count, image_count, created_at
	FROM packages
	WHERE id=$1
	`
	err := db.pool.QueryRow(ctx, q, id).Scan(
		&p.ID, &p.Name, &gameType, &p.IsActive, &p.IsFree,
		&p.RiddleCount, &p.ImageCount, &p.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err, apperror.ReasonPackageNotFound)
	}
	p.GameType = models.GameType(gameType)
	return &p, nil
}

// UpsertPackage inserts or replaces a catalog package. Used by seeding and tests.
func (db *Postgres) UpsertPackage(ctx context.Context, p *models.Package) error {
	q := `
	INSERT INTO packages (id, name, game_type, is_active, is_free, riddle_count, image_count, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		name=$2, game_type=$3, is_active=$4, is_free=$5, riddle_count=$6, image_count=$7
	`
	return pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			p.ID, p.Name, string(p.GameType), p.IsActive, p.IsFree,
			p.RiddleCount, p.ImageCount, p.CreatedAt,
		)
		return err
	})
}

// GetLetterQuestion looks up the question for (package, letter, variant).
func (db *Postgres) GetLetterQuestion(ctx context.Context, packageID uuid.UUID, letter string, variant models.Variant) (*models.LetterQuestion, error) {
	lq := models.LetterQuestion{PackageID: packageID, Letter: letter, Variant: variant}
	q := `
	SELECT question, answer
	FROM letter_questions
	WHERE package_id=$1 AND letter=$2 AND variant=$3
	`
	err := db.pool.QueryRow(ctx, q, packageID, letter, string(variant)).Scan(&lq.Question, &lq.Answer)
	if err != nil {
		return nil, mapError(err, apperror.ReasonQuestionNotFound)
	}
	return &lq, nil
}

func (db *Postgres) UpsertLetterQuestion(ctx context.Context, lq *models.LetterQuestion) error {
	q := `
	INSERT INTO letter_questions (package_id, letter, variant, question, answer)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (package_id, letter, variant) DO UPDATE SET question=$4, answer=$5
	`
	_, err := db.pool.Exec(ctx, q, lq.PackageID, lq.Letter, string(lq.Variant), lq.Question, lq.Answer)
	return err
}

// GetRiddle looks up a riddle by its 1-based index.
func (db *Postgres) GetRiddle(ctx context.Context, packageID uuid.UUID, index int) (*models.Riddle, error) {
	r := models.Riddle{PackageID: packageID, Index: index}
	q := `SELECT text, answer FROM riddles WHERE package_id=$1 AND idx=$2`
	if err := db.pool.QueryRow(ctx, q, packageID, index).Scan(&r.Text, &r.Answer); err != nil {
		return nil, mapError(err, apperror.ReasonRiddleNotFound)
	}
	return &r, nil
}

func (db *Postgres) UpsertRiddle(ctx context.Context, r *models.Riddle) error {
	q := `
	INSERT INTO riddles (package_id, idx, text, answer)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (package_id, idx) DO UPDATE SET text=$3, answer=$4
	`
	_, err := db.pool.Exec(ctx, q, r.PackageID, r.Index, r.Text, r.Answer)
	return err
}
