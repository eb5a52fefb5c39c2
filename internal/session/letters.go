package session

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/hub"
	"github.com/jason-s-yu/partygames/internal/letters"
	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/sirupsen/logrus"
)

// SelectLetter reveals the question for letter in the given variant. A letter can be
// selected once per session; the second attempt is rejected whether it comes late or
// races the first. The returned question never carries the answer.
func (s *Service) SelectLetter(ctx context.Context, sessionID uuid.UUID, letter string, variant models.Variant) (*models.LetterQuestion, error) {
	letter = strings.TrimSpace(letter)
	if !letters.IsLetter(letter) {
		return nil, apperror.Validation(apperror.ReasonUnknownLetter, "%q is not a game letter", letter)
	}
	if variant == "" {
		variant = models.VariantMain
	}
	if !variant.Valid() {
		return nil, apperror.Validation(apperror.ReasonInvalidVariant, "unknown variant %q", variant)
	}

	var q *models.LetterQuestion
	err := s.withLock(ctx, sessionID, func() error {
		sess, err := s.loadLive(ctx, sessionID, models.GameLetters)
		if err != nil {
			return err
		}
		progress, err := s.store.GetLettersProgress(ctx, sessionID)
		if err != nil {
			return err
		}
		if progress.IsUsed(letter) {
			return apperror.Validation(apperror.ReasonLetterAlreadyUsed, "letter %q already used", letter)
		}
		q, err = s.store.GetLetterQuestion(ctx, sess.PackageID, letter, variant)
		if err != nil {
			return err
		}
		// the store re-checks the used set in the same statement
		_, err = s.store.MarkLetterUsed(ctx, sessionID, letter, variant, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"letter":     letter,
		"variant":    variant,
	}).Debug("letter selected")
	s.publish(ctx, sessionID, hub.NewQuestionRevealed(letter, q.Question))
	s.record(ctx, sessionID, "letter_selected", nil, map[string]interface{}{
		"letter":  letter,
		"variant": string(variant),
	})

	out := *q
	out.Answer = ""
	return &out, nil
}

// RevealAnswer returns the answer of the current letter and announces it. Only the
// host may call it; that check lives at the transport boundary.
func (s *Service) RevealAnswer(ctx context.Context, sessionID uuid.UUID) (*models.LetterQuestion, error) {
	sess, err := s.loadLive(ctx, sessionID, models.GameLetters)
	if err != nil {
		return nil, err
	}
	progress, err := s.store.GetLettersProgress(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if progress.CurrentLetter == "" {
		return nil, apperror.Validation(apperror.ReasonNoCurrentLetter, "no letter selected yet")
	}
	q, err := s.store.GetLetterQuestion(ctx, sess.PackageID, progress.CurrentLetter, progress.CurrentVariant)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, sessionID, hub.NewGenericUpdate("answer_revealed", map[string]interface{}{
		"letter": q.Letter,
		"answer": q.Answer,
	}))
	s.record(ctx, sessionID, "answer_revealed", &sess.HostID, map[string]interface{}{"letter": q.Letter})
	return q, nil
}

// ResolveCell marks a revealed letter as answered by team.
func (s *Service) ResolveCell(ctx context.Context, sessionID uuid.UUID, letter string, team models.Team) (*models.LettersGameProgress, error) {
	if !letters.IsLetter(letter) {
		return nil, apperror.Validation(apperror.ReasonUnknownLetter, "%q is not a game letter", letter)
	}
	if !team.Valid() {
		return nil, apperror.Validation(apperror.ReasonInvalidTeam, "unknown team %q", team)
	}
	var out *models.LettersGameProgress
	err := s.withLock(ctx, sessionID, func() error {
		if _, err := s.loadLive(ctx, sessionID, models.GameLetters); err != nil {
			return err
		}
		progress, err := s.store.GetLettersProgress(ctx, sessionID)
		if err != nil {
			return err
		}
		if !progress.IsUsed(letter) {
			return apperror.Validation(apperror.ReasonInvalidRequest, "letter %q has not been revealed", letter)
		}
		out, err = s.store.SetCell(ctx, sessionID, letter, models.Cell{State: models.CellAnswered, Team: team}, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, sessionID, hub.NewGenericUpdate("cell", map[string]interface{}{
		"letter": letter,
		"state":  string(models.CellAnswered),
		"team":   string(team),
	}))
	s.record(ctx, sessionID, "cell_resolved", nil, map[string]interface{}{"letter": letter, "team": string(team)})
	return out, nil
}

// UpdateScore adds delta to a team's score. The stored score never drops below zero.
func (s *Service) UpdateScore(ctx context.Context, sessionID uuid.UUID, team models.Team, delta int) (*models.GameSession, error) {
	if !team.Valid() {
		return nil, apperror.Validation(apperror.ReasonInvalidTeam, "unknown team %q", team)
	}
	var out *models.GameSession
	err := s.withLock(ctx, sessionID, func() error {
		if _, err := s.loadLive(ctx, sessionID, ""); err != nil {
			return err
		}
		var err error
		out, err = s.store.AddScore(ctx, sessionID, team, delta, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, sessionID, hub.NewGenericUpdate("score", map[string]interface{}{
		"team1_score": out.Team1Score,
		"team2_score": out.Team2Score,
	}))
	s.record(ctx, sessionID, "score_updated", nil, map[string]interface{}{
		"team":  string(team),
		"delta": delta,
	})
	return out, nil
}

// Buzz announces a contestant pressing the buzzer. Nothing is stored and no order is
// arbitrated; clients treat the first one they see as the winner.
func (s *Service) Buzz(ctx context.Context, sessionID uuid.UUID, contestantName string) error {
	name := strings.TrimSpace(contestantName)
	if name == "" {
		return apperror.Validation(apperror.ReasonNameRequired, "contestant name is required")
	}
	if _, err := s.loadLive(ctx, sessionID, models.GameLetters); err != nil {
		return err
	}
	s.publish(ctx, sessionID, hub.NewBuzz(name))
	return nil
}

// SetLetterOrder forces the board order of a paid Letters session and returns the order
// now in effect. Free sessions keep the shared order, which is returned unchanged.
func (s *Service) SetLetterOrder(ctx context.Context, sessionID uuid.UUID, order []string) ([]string, error) {
	if err := letters.ValidateOrder(order); err != nil {
		return nil, err
	}

	var (
		effective []string
		paid      bool
	)
	err := s.withLock(ctx, sessionID, func() error {
		sess, err := s.loadLive(ctx, sessionID, models.GameLetters)
		if err != nil {
			return err
		}
		paid = sess.PurchaseID != nil
		if err := s.orders.SetOrder(ctx, sessionID, paid, order); err != nil {
			return err
		}
		effective, err = s.orders.Order(ctx, sessionID, paid)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !paid {
		return effective, nil
	}

	s.publish(ctx, sessionID, hub.NewGenericUpdate("letter_order", map[string]interface{}{"order": effective}))
	s.record(ctx, sessionID, "letter_order_set", nil, map[string]interface{}{"order": effective})
	return effective, nil
}
