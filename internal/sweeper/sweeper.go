// Package sweeper runs the eager expiry pass on a cron schedule.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/partygames/internal/session"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweepable is the slice of the session service the sweeper drives.
type Sweepable interface {
	Sweep(ctx context.Context) (session.SweepResult, error)
}

// Sweeper calls Sweep on every tick of its schedule. A tick that fires while the
// previous pass is still running is skipped.
type Sweeper struct {
	svc     Sweepable
	cron    *cron.Cron
	logger  logrus.FieldLogger
	timeout time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New parses schedule and registers the job. Start begins ticking.
func New(svc Sweepable, schedule string, logger logrus.FieldLogger) (*Sweeper, error) {
	s := &Sweeper{
		svc:     svc,
		logger:  logger.WithField("component", "sweeper"),
		timeout: time.Minute,
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// RunOnce performs a single pass and logs what it did.
func (s *Sweeper) RunOnce(ctx context.Context) (session.SweepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	res, err := s.svc.Sweep(ctx)
	if err != nil {
		s.logger.WithError(err).Error("sweep failed")
		return res, err
	}
	if res.Sessions > 0 || res.Purchases > 0 {
		s.logger.WithFields(logrus.Fields{
			"sessions":  res.Sessions,
			"purchases": res.Purchases,
			"took":      time.Since(started),
		}).Info("sweep expired entities")
	}
	return res, nil
}

func (s *Sweeper) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	_, _ = s.RunOnce(ctx)
}

// Start schedules passes until Stop or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
}

// Stop halts scheduling and waits for a running pass to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

// Run starts the sweeper and blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
	return nil
}
