// Package expiry decides when sessions and purchases outlive their windows.
//
// Every decision is a function of stored timestamps and fixed windows. Reconcile
// functions are pure: they return the transitioned record and whether anything changed,
// and the caller persists it. Both the lazy read path and the periodic sweep use them.
package expiry

import (
	"time"

	"github.com/jason-s-yu/partygames/internal/models"
)

const (
	DefaultPurchaseWindow = 72 * time.Hour
	DefaultFreeWindow     = 60 * time.Minute
)

// Policy holds the fixed windows. The zero value is not useful; use Default.
type Policy struct {
	PurchaseWindow time.Duration
	FreeLetters    time.Duration
	FreeImages     time.Duration
}

func Default() Policy {
	return Policy{
		PurchaseWindow: DefaultPurchaseWindow,
		FreeLetters:    DefaultFreeWindow,
		FreeImages:     DefaultFreeWindow,
	}
}

// PurchaseExpiresAt is the canonical deadline of a purchase made at purchasedAt.
func (p Policy) PurchaseExpiresAt(purchasedAt time.Time) time.Time {
	return purchasedAt.Add(p.PurchaseWindow)
}

// PurchaseDeadline returns the stored deadline, re-derived from PurchasedAt if absent.
func (p Policy) PurchaseDeadline(pu *models.UserPurchase) time.Time {
	if pu.ExpiresAt != nil {
		return *pu.ExpiresAt
	}
	return p.PurchaseExpiresAt(pu.PurchasedAt)
}

// PurchaseExpired reports whether now is at or past the purchase deadline.
func (p Policy) PurchaseExpired(pu *models.UserPurchase, now time.Time) bool {
	return !now.Before(p.PurchaseDeadline(pu))
}

// SessionDeadline returns the instant the session expires and whether it has one.
// A purchase-linked session defers entirely to the purchase; purchase may be nil only
// when the session has none. Free windows apply to purchaseless letters and images sessions.
func (p Policy) SessionDeadline(s *models.GameSession, purchase *models.UserPurchase) (time.Time, bool) {
	if s.PurchaseID != nil {
		if purchase == nil {
			return time.Time{}, false
		}
		return p.PurchaseDeadline(purchase), true
	}
	switch s.GameType {
	case models.GameLetters:
		return s.CreatedAt.Add(p.FreeLetters), true
	case models.GameImages:
		return s.CreatedAt.Add(p.FreeImages), true
	}
	return time.Time{}, false
}

// SessionExpired reports whether the session's window has elapsed at now.
func (p Policy) SessionExpired(s *models.GameSession, purchase *models.UserPurchase, now time.Time) bool {
	deadline, ok := p.SessionDeadline(s, purchase)
	return ok && !now.Before(deadline)
}

// ReconcileSession moves an expired, non-terminal session to inactive+completed.
func (p Policy) ReconcileSession(s models.GameSession, purchase *models.UserPurchase, now time.Time) (models.GameSession, bool) {
	if s.Terminal() || !p.SessionExpired(&s, purchase, now) {
		return s, false
	}
	s.IsActive = false
	s.IsCompleted = true
	s.UpdatedAt = now
	return s, true
}

// ReconcilePurchase fills a missing deadline and completes the purchase once the deadline passes.
func (p Policy) ReconcilePurchase(pu models.UserPurchase, now time.Time) (models.UserPurchase, bool) {
	changed := false
	if pu.ExpiresAt == nil {
		deadline := p.PurchaseExpiresAt(pu.PurchasedAt)
		pu.ExpiresAt = &deadline
		changed = true
	}
	if !pu.IsCompleted && !now.Before(*pu.ExpiresAt) {
		t := now
		pu.IsCompleted = true
		pu.CompletedAt = &t
		changed = true
	}
	return pu, changed
}

// Remaining is the time left until the deadline, never negative.
func Remaining(deadline, now time.Time) time.Duration {
	if d := deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}
