package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/models"
)

// Snapshot is the full state a reconnecting client pulls to resync.
type Snapshot struct {
	Session     models.GameSession          `json:"session"`
	ExpiresAt   *time.Time                  `json:"expires_at,omitempty"`
	Letters     *models.LettersGameProgress `json:"letters,omitempty"`
	LetterOrder []string                    `json:"letter_order,omitempty"`
	Images      *models.ImagesGameProgress  `json:"images,omitempty"`
	Time        *TimeView                   `json:"time,omitempty"`
	Contestants []models.Contestant         `json:"contestants"`
	ServerTime  time.Time                   `json:"server_time"`
}

// Snapshot reads the current state of a session. It applies the expiry check but takes
// no lock, so it may observe a transition in flight; clients get the next event anyway.
func (s *Service) Snapshot(ctx context.Context, sessionID uuid.UUID) (*Snapshot, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	snap := &Snapshot{Session: *sess, ServerTime: now}

	purchase, err := s.purchaseOf(ctx, sess)
	if err != nil {
		return nil, err
	}
	if deadline, ok := s.policy.SessionDeadline(sess, purchase); ok {
		snap.ExpiresAt = &deadline
	}

	switch sess.GameType {
	case models.GameLetters:
		if snap.Letters, err = s.store.GetLettersProgress(ctx, sessionID); err != nil {
			return nil, err
		}
		if snap.LetterOrder, err = s.orders.Order(ctx, sessionID, sess.PurchaseID != nil); err != nil {
			return nil, wrapf(err, "letter order for %s", sessionID)
		}
	case models.GameImages:
		if snap.Images, err = s.store.GetImagesProgress(ctx, sessionID); err != nil {
			return nil, err
		}
	case models.GameTime:
		progress, err := s.store.GetTimeProgress(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		snap.Time = newTimeView(progress, now)
		r, err := s.store.GetRiddle(ctx, sess.PackageID, progress.CurrentRiddleIndex)
		switch {
		case err == nil:
			snap.Time.RiddleText = r.Text
		case apperror.KindOf(err) != apperror.KindNotFound:
			return nil, err
		}
	}

	if snap.Contestants, err = s.store.ListContestants(ctx, sessionID); err != nil {
		return nil, err
	}
	if snap.Contestants == nil {
		snap.Contestants = []models.Contestant{}
	}
	return snap, nil
}
