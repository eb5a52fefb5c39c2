// Package session is the game session state machine. Every transition runs under the
// session's mutex, validates before it writes, and publishes only after the store accepted
// the change, so a rejection never leaves a partial mutation behind.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/cache"
	"github.com/jason-s-yu/partygames/internal/clock"
	"github.com/jason-s-yu/partygames/internal/database"
	"github.com/jason-s-yu/partygames/internal/expiry"
	"github.com/jason-s-yu/partygames/internal/hub"
	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/sirupsen/logrus"
)

// Store is the persistence collaborator. Conditional writes report lost races as
// conflict errors; unique constraints surface as conflict errors too.
type Store interface {
	GetPackage(ctx context.Context, id uuid.UUID) (*models.Package, error)
	GetLetterQuestion(ctx context.Context, packageID uuid.UUID, letter string, variant models.Variant) (*models.LetterQuestion, error)
	GetRiddle(ctx context.Context, packageID uuid.UUID, index int) (*models.Riddle, error)

	CreatePurchase(ctx context.Context, p *models.UserPurchase) error
	GetPurchase(ctx context.Context, id uuid.UUID) (*models.UserPurchase, error)
	FindOpenPurchase(ctx context.Context, userID, packageID uuid.UUID) (*models.UserPurchase, error)
	SetPurchaseExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	CompletePurchase(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListOverduePurchases(ctx context.Context, now, purchasedBefore time.Time, limit int) ([]models.UserPurchase, error)

	CreateSession(ctx context.Context, s *models.GameSession, progress models.SessionProgress) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error)
	FindSessionByLink(ctx context.Context, token string) (*models.GameSession, models.LinkRole, error)
	CompleteSession(ctx context.Context, id uuid.UUID, winner *models.Winner, at time.Time) (bool, error)
	DeactivateSession(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	AddScore(ctx context.Context, id uuid.UUID, team models.Team, delta int, at time.Time) (*models.GameSession, error)
	ListExpirableSessions(ctx context.Context, c database.ExpiryCandidates) ([]models.GameSession, error)

	GetLettersProgress(ctx context.Context, sessionID uuid.UUID) (*models.LettersGameProgress, error)
	MarkLetterUsed(ctx context.Context, sessionID uuid.UUID, letter string, variant models.Variant, at time.Time) (*models.LettersGameProgress, error)
	SetCell(ctx context.Context, sessionID uuid.UUID, letter string, cell models.Cell, at time.Time) (*models.LettersGameProgress, error)
	GetImagesProgress(ctx context.Context, sessionID uuid.UUID) (*models.ImagesGameProgress, error)
	SetImageIndex(ctx context.Context, sessionID uuid.UUID, from, to int, at time.Time) (*models.ImagesGameProgress, error)
	GetTimeProgress(ctx context.Context, sessionID uuid.UUID) (*models.TimeGameProgress, error)
	SaveTimeProgress(ctx context.Context, p *models.TimeGameProgress) error

	AddContestant(ctx context.Context, c *models.Contestant) error
	ListContestants(ctx context.Context, sessionID uuid.UUID) ([]models.Contestant, error)
	DeactivateContestant(ctx context.Context, sessionID, contestantID uuid.UUID) (bool, error)
}

// Locker provides one mutual-exclusion boundary per session.
type Locker interface {
	Lock(ctx context.Context, sessionID uuid.UUID) (func(), error)
}

// LetterOrders hands out the letter walk order of a session.
type LetterOrders interface {
	Order(ctx context.Context, sessionID uuid.UUID, paid bool) ([]string, error)
	SetOrder(ctx context.Context, sessionID uuid.UUID, paid bool, order []string) error
}

// Journal records successful transitions for the historian.
type Journal interface {
	Record(ctx context.Context, ev models.SessionEvent) error
}

// Options wires a Service. Cache and Journal are optional.
type Options struct {
	Store        Store
	Locker       Locker
	Orders       LetterOrders
	Publisher    hub.Publisher
	Journal      Journal
	Cache        cache.Store
	Policy       expiry.Policy
	ClockSeconds float64
	Logger       logrus.FieldLogger
	Now          func() time.Time
}

type Service struct {
	store        Store
	locks        Locker
	orders       LetterOrders
	pub          hub.Publisher
	journal      Journal
	cache        cache.Store
	policy       expiry.Policy
	clockSeconds float64
	logger       logrus.FieldLogger
	now          func() time.Time
}

const (
	packageCacheTTL = 5 * time.Minute
	sweepBatch      = 500
	linkAttempts    = 5
)

func NewService(o Options) *Service {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.ClockSeconds <= 0 {
		o.ClockSeconds = clock.DefaultSeconds
	}
	if o.Policy.PurchaseWindow == 0 {
		o.Policy = expiry.Default()
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return &Service{
		store:        o.Store,
		locks:        o.Locker,
		orders:       o.Orders,
		pub:          o.Publisher,
		journal:      o.Journal,
		cache:        o.Cache,
		policy:       o.Policy,
		clockSeconds: o.ClockSeconds,
		logger:       o.Logger,
		now:          func() time.Time { return o.Now().UTC() },
	}
}

// Policy exposes the expiry windows in use.
func (s *Service) Policy() expiry.Policy {
	return s.policy
}

// ClockSeconds is the per-side budget a reset uses when none is given.
func (s *Service) ClockSeconds() float64 {
	return s.clockSeconds
}

// withLock runs fn while holding the session mutex.
func (s *Service) withLock(ctx context.Context, sessionID uuid.UUID, fn func() error) error {
	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (s *Service) getPackage(ctx context.Context, id uuid.UUID) (*models.Package, error) {
	if s.cache == nil {
		return s.store.GetPackage(ctx, id)
	}
	p, err := cache.UseCache(ctx, s.cache, "package:"+id.String(), packageCacheTTL, func() (models.Package, error) {
		p, err := s.store.GetPackage(ctx, id)
		if err != nil {
			return models.Package{}, err
		}
		return *p, nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// publish is fire-and-forget: a failed fan-out never undoes a committed transition.
func (s *Service) publish(ctx context.Context, sessionID uuid.UUID, ev hub.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, sessionID, ev); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"type":       ev.Type,
		}).Warn("failed to publish session event")
	}
}

func (s *Service) record(ctx context.Context, sessionID uuid.UUID, eventType string, actor *uuid.UUID, payload map[string]interface{}) {
	if s.journal == nil {
		return
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	ev := models.SessionEvent{
		SessionID: sessionID,
		EventType: eventType,
		ActorID:   actor,
		Payload:   payload,
		Timestamp: s.now().UnixMilli(),
	}
	if err := s.journal.Record(ctx, ev); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"event_type": eventType,
		}).Warn("failed to journal session event")
	}
}

func wrapf(err error, format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, err)...)
}
