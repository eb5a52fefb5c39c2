package expiry

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)

func freeSession(gt models.GameType) models.GameSession {
	return models.GameSession{
		ID:        uuid.New(),
		GameType:  gt,
		IsActive:  true,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

func TestFreeLettersSessionWindow(t *testing.T) {
	p := Default()
	s := freeSession(models.GameLetters)

	assert.False(t, p.SessionExpired(&s, nil, t0.Add(59*time.Minute)))
	assert.True(t, p.SessionExpired(&s, nil, t0.Add(60*time.Minute)))
	assert.True(t, p.SessionExpired(&s, nil, t0.Add(3*time.Hour)))
}

func TestFreeImagesSessionWindow(t *testing.T) {
	p := Default()
	s := freeSession(models.GameImages)
	assert.False(t, p.SessionExpired(&s, nil, t0.Add(59*time.Minute+59*time.Second)))
	assert.True(t, p.SessionExpired(&s, nil, t0.Add(time.Hour)))
}

func TestPurchaselessTimeSessionHasNoDeadline(t *testing.T) {
	p := Default()
	s := freeSession(models.GameTime)
	_, ok := p.SessionDeadline(&s, nil)
	assert.False(t, ok)
	assert.False(t, p.SessionExpired(&s, nil, t0.Add(1000*time.Hour)))
}

func TestPurchaseLinkedSessionDefersToPurchase(t *testing.T) {
	p := Default()
	pu := models.UserPurchase{ID: uuid.New(), PurchasedAt: t0}
	s := freeSession(models.GameLetters)
	s.PurchaseID = &pu.ID

	// the free window does not apply
	assert.False(t, p.SessionExpired(&s, &pu, t0.Add(2*time.Hour)))
	assert.False(t, p.SessionExpired(&s, &pu, t0.Add(72*time.Hour-time.Second)))
	assert.True(t, p.SessionExpired(&s, &pu, t0.Add(72*time.Hour)))
}

func TestPurchaseDeadlineIsPurchasePlus72h(t *testing.T) {
	p := Default()
	assert.Equal(t, t0.Add(72*time.Hour), p.PurchaseExpiresAt(t0))
}

func TestReconcilePurchaseIsIdempotent(t *testing.T) {
	p := Default()
	deadline := p.PurchaseExpiresAt(t0)
	pu := models.UserPurchase{ID: uuid.New(), PurchasedAt: t0, ExpiresAt: &deadline}

	same, changed := p.ReconcilePurchase(pu, t0.Add(71*time.Hour))
	assert.False(t, changed)
	assert.False(t, same.IsCompleted)

	after := t0.Add(72*time.Hour + time.Second)
	done, changed := p.ReconcilePurchase(pu, after)
	require.True(t, changed)
	assert.True(t, done.IsCompleted)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, after, *done.CompletedAt)

	again, changed := p.ReconcilePurchase(done, after.Add(time.Minute))
	assert.False(t, changed)
	assert.True(t, again.IsCompleted)
	assert.Equal(t, after, *again.CompletedAt)
}

func TestReconcilePurchaseDerivesMissingDeadline(t *testing.T) {
	p := Default()
	pu := models.UserPurchase{ID: uuid.New(), PurchasedAt: t0}

	out, changed := p.ReconcilePurchase(pu, t0.Add(time.Hour))
	require.True(t, changed)
	require.NotNil(t, out.ExpiresAt)
	assert.Equal(t, t0.Add(72*time.Hour), *out.ExpiresAt)
	assert.False(t, out.IsCompleted)
	assert.Nil(t, pu.ExpiresAt, "input is not mutated")
}

func TestReconcileSessionTransitionsOnce(t *testing.T) {
	p := Default()
	s := freeSession(models.GameLetters)
	now := t0.Add(61 * time.Minute)

	out, changed := p.ReconcileSession(s, nil, now)
	require.True(t, changed)
	assert.False(t, out.IsActive)
	assert.True(t, out.IsCompleted)
	assert.Equal(t, now, out.UpdatedAt)

	_, changed = p.ReconcileSession(out, nil, now.Add(time.Hour))
	assert.False(t, changed)
}

func TestReconcileCompletesDeactivatedSession(t *testing.T) {
	p := Default()
	s := freeSession(models.GameImages)
	s.IsActive = false

	out, changed := p.ReconcileSession(s, nil, t0.Add(2*time.Hour))
	assert.True(t, changed)
	assert.True(t, out.Terminal())
}

func TestRemainingNeverNegative(t *testing.T) {
	assert.Equal(t, 5*time.Minute, Remaining(t0.Add(5*time.Minute), t0))
	assert.Equal(t, time.Duration(0), Remaining(t0, t0.Add(time.Second)))
}
