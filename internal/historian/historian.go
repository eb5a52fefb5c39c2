// Package historian drains the session journal queue from Redis and persists it in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// popTimeout bounds each BLPop so cancellation and the flush deadline are noticed.
// go-redis rounds blocking timeouts below one second up to one second.
const popTimeout = time.Second

// Sink stores a batch of journal entries.
type Sink interface {
	InsertSessionEvents(ctx context.Context, events []models.SessionEvent) error
}

type Options struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
}

// Service pops entries from the queue, accumulates them and flushes to the sink when the
// batch is full or FlushDelay has passed since the last flush.
type Service struct {
	rdb    redis.Cmdable
	sink   Sink
	opts   Options
	logger logrus.FieldLogger

	batch     []models.SessionEvent
	lastFlush time.Time
}

func New(rdb redis.Cmdable, sink Sink, opts Options, logger logrus.FieldLogger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	return &Service{
		rdb:    rdb,
		sink:   sink,
		opts:   opts,
		logger: logger.WithField("queue", opts.Queue),
		batch:  make([]models.SessionEvent, 0, opts.BatchSize),
	}
}

// Run consumes the queue until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("historian started")
	s.lastFlush = time.Now()
	for {
		if ctx.Err() != nil {
			s.flush(context.WithoutCancel(ctx))
			s.logger.Info("historian shutting down")
			return nil
		}

		res, err := s.rdb.BLPop(ctx, popTimeout, s.opts.Queue).Result()
		switch {
		case err == nil && len(res) == 2:
			s.append(res[1])
		case err == nil, errors.Is(err, redis.Nil), errors.Is(err, context.Canceled):
		default:
			s.logger.WithError(err).Error("BLPop failed")
			select {
			case <-ctx.Done():
			case <-time.After(popTimeout):
			}
		}

		if len(s.batch) >= s.opts.BatchSize || (len(s.batch) > 0 && time.Since(s.lastFlush) >= s.opts.FlushDelay) {
			s.flush(ctx)
		}
	}
}

func (s *Service) append(payload string) {
	var ev models.SessionEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		s.logger.WithError(err).Warn("invalid journal entry")
		return
	}
	s.batch = append(s.batch, ev)
}

// flush writes the pending batch in one call. A failed batch is logged and dropped;
// the journal is best-effort and never blocks the sessions producing it.
func (s *Service) flush(ctx context.Context) {
	s.lastFlush = time.Now()
	if len(s.batch) == 0 {
		return
	}
	pending := make([]models.SessionEvent, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]

	if err := s.sink.InsertSessionEvents(ctx, pending); err != nil {
		s.logger.WithError(err).WithField("count", len(pending)).Error("flush journal batch failed")
		return
	}
	s.logger.WithField("count", len(pending)).Debug("flushed journal batch")
}
