package locker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (*Redsync, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedsync(rdb, time.Second, logrus.New()), mr
}

func TestLockIsExclusivePerSession(t *testing.T) {
	l, _ := newLocker(t)
	id := uuid.New()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, id)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestDifferentSessionsDoNotBlock(t *testing.T) {
	l, _ := newLocker(t)
	ctx := context.Background()

	u1, err := l.Lock(ctx, uuid.New())
	require.NoError(t, err)
	defer u1()

	u2, err := l.Lock(ctx, uuid.New())
	require.NoError(t, err)
	u2()
}

func TestLockBusyMapsToConflict(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	l := NewRedsync(rdb, time.Minute, logrus.New())
	l.tries = 2
	id := uuid.New()

	unlock, err := l.Lock(context.Background(), id)
	require.NoError(t, err)
	defer unlock()

	_, err = l.Lock(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
	assert.Equal(t, apperror.ReasonSessionBusy, apperror.ReasonOf(err))
}
