package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/clock"
	"github.com/jason-s-yu/partygames/internal/hub"
	"github.com/jason-s-yu/partygames/internal/models"
)

// NextImage advances the Images index by one, bounded by the package's image count.
func (s *Service) NextImage(ctx context.Context, sessionID uuid.UUID) (*models.ImagesGameProgress, error) {
	var out *models.ImagesGameProgress
	err := s.withLock(ctx, sessionID, func() error {
		sess, err := s.loadLive(ctx, sessionID, models.GameImages)
		if err != nil {
			return err
		}
		pkg, err := s.getPackage(ctx, sess.PackageID)
		if err != nil {
			return err
		}
		progress, err := s.store.GetImagesProgress(ctx, sessionID)
		if err != nil {
			return err
		}
		next := progress.CurrentIndex + 1
		if next > pkg.ImageCount {
			return apperror.Validation(apperror.ReasonIndexOutOfRange, "image %d is past the last image %d", next, pkg.ImageCount)
		}
		out, err = s.store.SetImageIndex(ctx, sessionID, progress.CurrentIndex, next, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, sessionID, hub.NewGenericUpdate("image", map[string]interface{}{"current_index": out.CurrentIndex}))
	s.record(ctx, sessionID, "image_advanced", nil, map[string]interface{}{"current_index": out.CurrentIndex})
	return out, nil
}

// TimeView is a Time-Challenge progress record with the clock evaluated at Now.
type TimeView struct {
	Progress   models.TimeGameProgress `json:"progress"`
	ARemaining float64                 `json:"a_remaining_seconds"`
	BRemaining float64                 `json:"b_remaining_seconds"`
	Exhausted  bool                    `json:"exhausted"`
	RiddleText string                  `json:"riddle_text,omitempty"`
	Now        time.Time               `json:"now"`
}

func newTimeView(p *models.TimeGameProgress, now time.Time) *TimeView {
	return &TimeView{
		Progress:   *p,
		ARemaining: p.Clock.Remaining(clock.SideA, now),
		BRemaining: p.Clock.Remaining(clock.SideB, now),
		Exhausted:  p.Clock.Exhausted(now),
		Now:        now,
	}
}

// withTime applies mutate to the Time-Challenge progress under the session lock and
// saves it with a version check. Settlement and the switch land in one write.
func (s *Service) withTime(ctx context.Context, sessionID uuid.UUID, event string, mutate func(sess *models.GameSession, p *models.TimeGameProgress, now time.Time) error) (*TimeView, error) {
	var view *TimeView
	err := s.withLock(ctx, sessionID, func() error {
		sess, err := s.loadLive(ctx, sessionID, models.GameTime)
		if err != nil {
			return err
		}
		progress, err := s.store.GetTimeProgress(ctx, sessionID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := mutate(sess, progress, now); err != nil {
			return err
		}
		progress.UpdatedAt = now
		if err := s.store.SaveTimeProgress(ctx, progress); err != nil {
			return err
		}
		view = newTimeView(progress, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, sessionID, hub.NewGenericUpdate("clock", map[string]interface{}{
		"current_side":         string(view.Progress.Clock.CurrentSide),
		"is_running":           view.Progress.Clock.IsRunning,
		"a_remaining_seconds":  view.ARemaining,
		"b_remaining_seconds":  view.BRemaining,
		"exhausted":            view.Exhausted,
		"current_riddle_index": view.Progress.CurrentRiddleIndex,
	}))
	s.record(ctx, sessionID, event, nil, map[string]interface{}{
		"current_side": string(view.Progress.Clock.CurrentSide),
		"is_running":   view.Progress.Clock.IsRunning,
	})
	return view, nil
}

// StartClock runs side, settling whichever side was running before.
func (s *Service) StartClock(ctx context.Context, sessionID uuid.UUID, side clock.Side) (*TimeView, error) {
	if !side.Valid() {
		return nil, apperror.Validation(apperror.ReasonInvalidSide, "unknown side %q", side)
	}
	return s.withTime(ctx, sessionID, "clock_started", func(_ *models.GameSession, p *models.TimeGameProgress, now time.Time) error {
		return p.Clock.Start(side, now)
	})
}

// StopClock settles and stops the clock.
func (s *Service) StopClock(ctx context.Context, sessionID uuid.UUID) (*TimeView, error) {
	return s.withTime(ctx, sessionID, "clock_stopped", func(_ *models.GameSession, p *models.TimeGameProgress, now time.Time) error {
		p.Clock.Stop(now)
		return nil
	})
}

// SwitchTurn hands the clock to the other side after an answer.
func (s *Service) SwitchTurn(ctx context.Context, sessionID uuid.UUID) (*TimeView, error) {
	return s.withTime(ctx, sessionID, "clock_switched", func(_ *models.GameSession, p *models.TimeGameProgress, now time.Time) error {
		p.Clock.SwitchAfterAnswer(now)
		return nil
	})
}

// ResetClock starts a new round: both sides get seconds and the clock stops with start current.
func (s *Service) ResetClock(ctx context.Context, sessionID uuid.UUID, seconds float64, start clock.Side) (*TimeView, error) {
	if seconds < 0 {
		return nil, apperror.Validation(apperror.ReasonNegativeTime, "seconds must be non-negative, got %v", seconds)
	}
	if !start.Valid() {
		return nil, apperror.Validation(apperror.ReasonInvalidSide, "unknown side %q", start)
	}
	return s.withTime(ctx, sessionID, "clock_reset", func(_ *models.GameSession, p *models.TimeGameProgress, _ time.Time) error {
		return p.Clock.Reset(seconds, start)
	})
}

// NextRiddle moves to the next riddle, bounded by the package's riddle count.
// The clock is left as is.
func (s *Service) NextRiddle(ctx context.Context, sessionID uuid.UUID) (*TimeView, error) {
	return s.withTime(ctx, sessionID, "riddle_advanced", func(sess *models.GameSession, p *models.TimeGameProgress, _ time.Time) error {
		pkg, err := s.getPackage(ctx, sess.PackageID)
		if err != nil {
			return err
		}
		next := p.CurrentRiddleIndex + 1
		if next > pkg.RiddleCount {
			return apperror.Validation(apperror.ReasonIndexOutOfRange, "riddle %d is past the last riddle %d", next, pkg.RiddleCount)
		}
		p.CurrentRiddleIndex = next
		return nil
	})
}

// CurrentRiddle returns the riddle in play with its answer hidden.
func (s *Service) CurrentRiddle(ctx context.Context, sessionID uuid.UUID) (*models.Riddle, error) {
	sess, err := s.loadLive(ctx, sessionID, models.GameTime)
	if err != nil {
		return nil, err
	}
	progress, err := s.store.GetTimeProgress(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	r, err := s.store.GetRiddle(ctx, sess.PackageID, progress.CurrentRiddleIndex)
	if err != nil {
		return nil, err
	}
	out := *r
	out.Answer = ""
	return &out, nil
}
