package database

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jason-s-yu/partygames/internal/models"
)

// ContentWriter is implemented by every store that can take catalog content.
type ContentWriter interface {
	UpsertPackage(ctx context.Context, p *models.Package) error
	UpsertLetterQuestion(ctx context.Context, lq *models.LetterQuestion) error
	UpsertRiddle(ctx context.Context, r *models.Riddle) error
}

// SeedPackage is one package in a content file, with its questions and riddles inline.
type SeedPackage struct {
	models.Package
	Questions []models.LetterQuestion `json:"questions,omitempty"`
	Riddles   []models.Riddle         `json:"riddles,omitempty"`
}

// ReadSeed decodes a JSON array of packages.
func ReadSeed(r io.Reader) ([]SeedPackage, error) {
	var pkgs []SeedPackage
	if err := json.NewDecoder(r).Decode(&pkgs); err != nil {
		return nil, fmt.Errorf("decode content file: %w", err)
	}
	return pkgs, nil
}

// Seed upserts packages and their content. RiddleCount follows the riddles given when
// the file leaves it zero.
func Seed(ctx context.Context, w ContentWriter, pkgs []SeedPackage) error {
	for _, sp := range pkgs {
		p := sp.Package
		if !p.GameType.Valid() {
			return fmt.Errorf("package %s: unknown game type %q", p.ID, p.GameType)
		}
		if p.RiddleCount == 0 {
			p.RiddleCount = len(sp.Riddles)
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		if err := w.UpsertPackage(ctx, &p); err != nil {
			return fmt.Errorf("upsert package %s: %w", p.ID, err)
		}
		for _, q := range sp.Questions {
			q.PackageID = p.ID
			if q.Variant == "" {
				q.Variant = models.VariantMain
			}
			if !q.Variant.Valid() {
				return fmt.Errorf("package %s letter %q: unknown variant %q", p.ID, q.Letter, q.Variant)
			}
			if err := w.UpsertLetterQuestion(ctx, &q); err != nil {
				return fmt.Errorf("upsert question %q/%s: %w", q.Letter, q.Variant, err)
			}
		}
		for _, r := range sp.Riddles {
			r.PackageID = p.ID
			if err := w.UpsertRiddle(ctx, &r); err != nil {
				return fmt.Errorf("upsert riddle %d: %w", r.Index, err)
			}
		}
	}
	return nil
}
