package historian

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/cache"
	"github.com/jason-s-yu/partygames/internal/database"
	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func record(t *testing.T, q *cache.EventQueue, sessionID uuid.UUID, eventType string) {
	t.Helper()
	require.NoError(t, q.Record(context.Background(), models.SessionEvent{
		SessionID: sessionID,
		EventType: eventType,
		Payload:   map[string]interface{}{"letter": "ب"},
		Timestamp: time.Now().UnixMilli(),
	}))
}

func TestDrainsQueueInBatches(t *testing.T) {
	mr, rdb := newRedis(t)
	q := cache.NewEventQueue(rdb, "")
	sink := database.NewMemory()
	sessionID := uuid.New()

	record(t, q, sessionID, "session_created")
	record(t, q, sessionID, "letter_selected")
	record(t, q, sessionID, "score_updated")
	_, err := mr.Lpush(q.Name(), "not json")
	require.NoError(t, err)

	h := New(rdb, sink, Options{Queue: q.Name(), BatchSize: 2, FlushDelay: 10 * time.Millisecond}, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(sink.SessionEvents()) == 3 }, 5*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	events := sink.SessionEvents()
	assert.Equal(t, "session_created", events[0].EventType)
	assert.Equal(t, "score_updated", events[2].EventType)
	assert.Equal(t, sessionID, events[1].SessionID)
	assert.Equal(t, "ب", events[1].Payload["letter"])
}

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (f *failingSink) InsertSessionEvents(context.Context, []models.SessionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("db down")
}

func (f *failingSink) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestFailedFlushDoesNotStopTheLoop(t *testing.T) {
	_, rdb := newRedis(t)
	q := cache.NewEventQueue(rdb, "journal")
	sink := &failingSink{}

	h := New(rdb, sink, Options{Queue: q.Name(), BatchSize: 1}, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	record(t, q, uuid.New(), "buzz")
	assert.Eventually(t, func() bool { return sink.Calls() == 1 }, 5*time.Second, 20*time.Millisecond)
	record(t, q, uuid.New(), "buzz")
	assert.Eventually(t, func() bool { return sink.Calls() == 2 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
