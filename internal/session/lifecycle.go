package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/database"
	"github.com/jason-s-yu/partygames/internal/hub"
	"github.com/jason-s-yu/partygames/internal/models"
)

// purchaseOf loads the purchase backing sess, or nil for purchaseless sessions.
func (s *Service) purchaseOf(ctx context.Context, sess *models.GameSession) (*models.UserPurchase, error) {
	if sess.PurchaseID == nil {
		return nil, nil
	}
	return s.store.GetPurchase(ctx, *sess.PurchaseID)
}

// reconcile applies the expiry policy to sess and persists the transition if it fired.
// It is the single code path behind the lazy read check and the sweep.
func (s *Service) reconcile(ctx context.Context, sess *models.GameSession) (*models.GameSession, bool, error) {
	purchase, err := s.purchaseOf(ctx, sess)
	if err != nil {
		return nil, false, err
	}
	next, changed := s.policy.ReconcileSession(*sess, purchase, s.now())
	if !changed {
		return sess, false, nil
	}
	won, err := s.store.CompleteSession(ctx, sess.ID, nil, next.UpdatedAt)
	if err != nil {
		return nil, false, wrapf(err, "expire session %s", sess.ID)
	}
	if !won {
		// someone else completed it first; return what is stored
		stored, err := s.store.GetSession(ctx, sess.ID)
		if err != nil {
			return nil, false, err
		}
		return stored, false, nil
	}
	s.logger.WithField("session_id", sess.ID).Info("session expired")
	s.publish(ctx, sess.ID, hub.NewGenericUpdate("session_expired", nil))
	s.record(ctx, sess.ID, "session_expired", nil, nil)
	return &next, true, nil
}

// load fetches a session with its expiry applied.
func (s *Service) load(ctx context.Context, sessionID uuid.UUID) (*models.GameSession, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess, _, err = s.reconcile(ctx, sess)
	return sess, err
}

// loadLive is load plus the requirement that the session still accepts transitions.
func (s *Service) loadLive(ctx context.Context, sessionID uuid.UUID, gameType models.GameType) (*models.GameSession, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsCompleted {
		return nil, apperror.Validation(apperror.ReasonSessionCompleted, "session %s is completed", sessionID)
	}
	if !sess.IsActive {
		return nil, apperror.Validation(apperror.ReasonSessionInactive, "session %s is not active", sessionID)
	}
	if gameType != "" && sess.GameType != gameType {
		return nil, apperror.Validation(apperror.ReasonWrongGameType, "session %s plays %s, not %s", sessionID, sess.GameType, gameType)
	}
	return sess, nil
}

// ExpireSession is the check-and-mark operation for one session. Safe to call
// concurrently and repeatedly; it reports whether this call made the transition.
func (s *Service) ExpireSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	_, changed, err := s.reconcile(ctx, sess)
	return changed, err
}

// ExpirePurchase persists a missing deadline and completes the purchase once it passed.
func (s *Service) ExpirePurchase(ctx context.Context, purchaseID uuid.UUID) (bool, error) {
	p, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return false, err
	}
	_, completed, err := s.reconcilePurchase(ctx, p)
	return completed, err
}

func (s *Service) reconcilePurchase(ctx context.Context, p *models.UserPurchase) (*models.UserPurchase, bool, error) {
	next, changed := s.policy.ReconcilePurchase(*p, s.now())
	if !changed {
		return p, false, nil
	}
	if p.ExpiresAt == nil {
		if err := s.store.SetPurchaseExpiry(ctx, p.ID, *next.ExpiresAt); err != nil {
			return nil, false, wrapf(err, "store purchase deadline %s", p.ID)
		}
	}
	if !next.IsCompleted || p.IsCompleted {
		return &next, false, nil
	}
	won, err := s.store.CompletePurchase(ctx, p.ID, *next.CompletedAt)
	if err != nil {
		return nil, false, wrapf(err, "complete purchase %s", p.ID)
	}
	if won {
		s.logger.WithField("purchase_id", p.ID).Info("purchase expired")
	}
	return &next, won, nil
}

// SweepResult counts the transitions one sweep made.
type SweepResult struct {
	Sessions  int
	Purchases int
}

// Sweep runs the eager expiry path over every candidate. Per-entity failures are logged
// and skipped so one bad row does not stall the rest.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.now()

	purchases, err := s.store.ListOverduePurchases(ctx, now, now.Add(-s.policy.PurchaseWindow), sweepBatch)
	if err != nil {
		return res, wrapf(err, "list overdue purchases")
	}
	for i := range purchases {
		_, completed, err := s.reconcilePurchase(ctx, &purchases[i])
		if err != nil {
			s.logger.WithError(err).WithField("purchase_id", purchases[i].ID).Warn("sweep: purchase")
			continue
		}
		if completed {
			res.Purchases++
		}
	}

	freeWindow := s.policy.FreeLetters
	if s.policy.FreeImages < freeWindow {
		freeWindow = s.policy.FreeImages
	}
	sessions, err := s.store.ListExpirableSessions(ctx, database.ExpiryCandidates{
		Now:               now,
		FreeCreatedBefore: now.Add(-freeWindow),
		PurchasedBefore:   now.Add(-s.policy.PurchaseWindow),
		Limit:             sweepBatch,
	})
	if err != nil {
		return res, wrapf(err, "list expirable sessions")
	}
	for i := range sessions {
		_, changed, err := s.reconcile(ctx, &sessions[i])
		if err != nil {
			s.logger.WithError(err).WithField("session_id", sessions[i].ID).Warn("sweep: session")
			continue
		}
		if changed {
			res.Sessions++
		}
	}
	return res, nil
}

// EndSession completes a session on the host's request. A nil winner is derived from
// the scores. A purchase backing the session is consumed with it; if that fails the
// session stays open.
func (s *Service) EndSession(ctx context.Context, sessionID uuid.UUID, winner *models.Winner) (*models.GameSession, error) {
	if winner != nil && !winner.Valid() {
		return nil, apperror.Validation(apperror.ReasonInvalidRequest, "unknown winner %q", *winner)
	}
	var out *models.GameSession
	err := s.withLock(ctx, sessionID, func() error {
		sess, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.IsCompleted {
			return apperror.Validation(apperror.ReasonSessionCompleted, "session %s is already completed", sessionID)
		}
		w := sess.DeriveWinner()
		if winner != nil {
			w = *winner
		}
		now := s.now()
		// the purchase goes first so a failure leaves the session open for a retry
		if sess.PurchaseID != nil {
			if _, err := s.store.CompletePurchase(ctx, *sess.PurchaseID, now); err != nil {
				return wrapf(err, "consume purchase %s", *sess.PurchaseID)
			}
		}
		won, err := s.store.CompleteSession(ctx, sessionID, &w, now)
		if err != nil {
			return err
		}
		if !won {
			return apperror.Conflict(apperror.ReasonSessionCompleted, "session %s completed concurrently", sessionID)
		}
		sess.IsActive = false
		sess.IsCompleted = true
		sess.Winner = &w
		sess.UpdatedAt = now
		out = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, sessionID, hub.NewGenericUpdate("session_ended", map[string]interface{}{"winner": string(*out.Winner)}))
	s.record(ctx, sessionID, "session_ended", &out.HostID, map[string]interface{}{"winner": string(*out.Winner)})
	return out, nil
}

// DeactivateSession pauses a session without completing it.
func (s *Service) DeactivateSession(ctx context.Context, sessionID uuid.UUID) (*models.GameSession, error) {
	var out *models.GameSession
	err := s.withLock(ctx, sessionID, func() error {
		sess, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.IsCompleted {
			return apperror.Validation(apperror.ReasonSessionCompleted, "session %s is completed", sessionID)
		}
		now := s.now()
		if _, err := s.store.DeactivateSession(ctx, sessionID, now); err != nil {
			return err
		}
		sess.IsActive = false
		sess.UpdatedAt = now
		out = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, sessionID, hub.NewGenericUpdate("session_deactivated", nil))
	s.record(ctx, sessionID, "session_deactivated", &out.HostID, nil)
	return out, nil
}
