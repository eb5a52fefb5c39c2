// Package locker serializes transitions of one session across processes.
package locker

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultTTL = 10 * time.Second

// LockKey is the mutex name of a session.
func LockKey(sessionID uuid.UUID) string {
	return "session:lock:" + sessionID.String()
}

// Redsync hands out one distributed mutex per session id.
type Redsync struct {
	rs     *redsync.Redsync
	ttl    time.Duration
	tries  int
	logger logrus.FieldLogger
}

func NewRedsync(client redis.UniversalClient, ttl time.Duration, logger logrus.FieldLogger) *Redsync {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	pool := goredis.NewPool(client)
	return &Redsync{
		rs:     redsync.New(pool),
		ttl:    ttl,
		tries:  32,
		logger: logger,
	}
}

// Lock blocks until the session mutex is held, ctx is done, or retries run out.
// Failing to acquire maps to conflict/session_busy. The returned func releases the mutex.
func (l *Redsync) Lock(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	mutex := l.rs.NewMutex(LockKey(sessionID),
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(l.tries),
		redsync.WithRetryDelay(25*time.Millisecond),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperror.Wrap(err, apperror.KindConflict, apperror.ReasonSessionBusy)
	}
	return func() {
		// an expired lock is only worth a warning; the holder already finished
		if ok, err := mutex.UnlockContext(context.Background()); err != nil || !ok {
			l.logger.WithError(err).WithField("session_id", sessionID).Warn("failed to release session lock")
		}
	}, nil
}
