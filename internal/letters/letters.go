// Package letters allocates the order in which the Letters board is walked.
//
// Free sessions share one permutation stored without expiry. Paid sessions each get
// their own, kept for the purchase window. The first writer of a key wins.
package letters

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/cache"
)

// Alphabet is the 28-letter game alphabet in canonical order.
var Alphabet = []string{
	"أ", "ب", "ت", "ث", "ج", "ح", "خ", "د", "ذ", "ر", "ز", "س", "ش", "ص",
	"ض", "ط", "ظ", "ع", "غ", "ف", "ق", "ك", "ل", "م", "ن", "ه", "و", "ي",
}

var alphabetIndex = func() map[string]int {
	m := make(map[string]int, len(Alphabet))
	for i, l := range Alphabet {
		m[l] = i
	}
	return m
}()

// IsLetter reports whether s is one of the 28 game letters.
func IsLetter(s string) bool {
	_, ok := alphabetIndex[s]
	return ok
}

const (
	FreeKey       = "letters:order:free"
	sessionPrefix = "letters:order:session:"

	// PaidTTL matches the purchase window.
	PaidTTL = 72 * time.Hour
)

// SessionKey is the cache key of a paid session's order.
func SessionKey(sessionID uuid.UUID) string {
	return sessionPrefix + sessionID.String()
}

// Allocator hands out letter orders backed by a shared cache.Store.
type Allocator struct {
	store   cache.Store
	paidTTL time.Duration
}

func NewAllocator(store cache.Store) *Allocator {
	return &Allocator{store: store, paidTTL: PaidTTL}
}

// FreeOrder returns the shared permutation used by every free session.
func (a *Allocator) FreeOrder(ctx context.Context) ([]string, error) {
	return a.getOrCreate(ctx, FreeKey, cache.NoExpiry)
}

// SessionOrder returns the permutation of a paid session, creating it on first access.
func (a *Allocator) SessionOrder(ctx context.Context, sessionID uuid.UUID) ([]string, error) {
	return a.getOrCreate(ctx, SessionKey(sessionID), a.paidTTL)
}

// Order picks the free or per-session order.
func (a *Allocator) Order(ctx context.Context, sessionID uuid.UUID, paid bool) ([]string, error) {
	if paid {
		return a.SessionOrder(ctx, sessionID)
	}
	return a.FreeOrder(ctx)
}

// SetOrder forces the stored order of a paid session. For free sessions it does nothing:
// the shared key is the only source of truth and is never overwritten.
func (a *Allocator) SetOrder(ctx context.Context, sessionID uuid.UUID, paid bool, order []string) error {
	if !paid {
		return nil
	}
	if err := ValidateOrder(order); err != nil {
		return err
	}
	if err := a.store.Set(ctx, SessionKey(sessionID), order, a.paidTTL); err != nil {
		return fmt.Errorf("set letter order: %w", err)
	}
	return nil
}

func (a *Allocator) getOrCreate(ctx context.Context, key string, ttl time.Duration) ([]string, error) {
	var order []string
	err := a.store.Get(ctx, key, &order)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("get letter order %s: %w", key, err)
	}
	if err == nil && ValidateOrder(order) == nil {
		return order, nil
	}

	fresh, err := Shuffle()
	if err != nil {
		return nil, err
	}
	if order != nil {
		// a corrupt entry is replaced outright; SetNX would keep it forever
		if err := a.store.Set(ctx, key, fresh, ttl); err != nil {
			return nil, fmt.Errorf("replace letter order %s: %w", key, err)
		}
		return fresh, nil
	}
	if err := a.store.SetNX(ctx, key, fresh, ttl); err != nil {
		return nil, fmt.Errorf("store letter order %s: %w", key, err)
	}
	// read back: a concurrent first request may have won the race
	if err := a.store.Get(ctx, key, &order); err != nil {
		return nil, fmt.Errorf("reload letter order %s: %w", key, err)
	}
	if err := ValidateOrder(order); err != nil {
		return nil, fmt.Errorf("letter order %s: %w", key, err)
	}
	return order, nil
}

// Shuffle returns a uniformly random permutation of Alphabet drawn from crypto/rand.
func Shuffle() ([]string, error) {
	out := make([]string, len(Alphabet))
	copy(out, Alphabet)
	for i := len(out) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, fmt.Errorf("read randomness: %w", err)
		}
		j := int(n.Int64())
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ValidateOrder checks that order is a permutation of Alphabet.
func ValidateOrder(order []string) error {
	if len(order) != len(Alphabet) {
		return apperror.Validation(apperror.ReasonInvalidOrder, "order must contain %d letters, got %d", len(Alphabet), len(order))
	}
	seen := make(map[string]bool, len(order))
	for _, l := range order {
		if !IsLetter(l) {
			return apperror.Validation(apperror.ReasonUnknownLetter, "unknown letter %q", l)
		}
		if seen[l] {
			return apperror.Validation(apperror.ReasonInvalidOrder, "letter %q repeated", l)
		}
		seen[l] = true
	}
	return nil
}
