package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jason-s-yu/partygames/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	calls atomic.Int32
	res   session.SweepResult
	err   error
}

func (f *fakeService) Sweep(ctx context.Context) (session.SweepResult, error) {
	f.calls.Add(1)
	return f.res, f.err
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(&fakeService{}, "every now and then", logrus.New())
	assert.Error(t, err)
}

func TestRunOnceLogsResult(t *testing.T) {
	logger, hook := test.NewNullLogger()
	svc := &fakeService{res: session.SweepResult{Sessions: 2, Purchases: 1}}
	s, err := New(svc, "@every 1m", logger)
	require.NoError(t, err)

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sessions)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, 2, hook.LastEntry().Data["sessions"])
	assert.Equal(t, 1, hook.LastEntry().Data["purchases"])
}

func TestRunOnceQuietWhenNothingExpired(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s, err := New(&fakeService{}, "@every 1m", logger)
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hook.AllEntries())
}

func TestRunOnceError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s, err := New(&fakeService{err: errors.New("db down")}, "@every 1m", logger)
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestScheduleTicks(t *testing.T) {
	svc := &fakeService{}
	s, err := New(svc, "@every 1s", logrus.New())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return svc.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	<-done

	after := svc.calls.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, svc.calls.Load())
}
