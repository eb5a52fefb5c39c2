package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func recv(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.OutChan:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishReachesEveryMemberIncludingSender(t *testing.T) {
	h := New(quietLogger())
	sid := uuid.New()
	display := NewClient(models.RoleDisplay, "", 4, quietLogger())
	contestant := NewClient(models.RoleContestant, "Ali", 4, quietLogger())
	other := NewClient(models.RoleDisplay, "", 4, quietLogger())
	h.Join(sid, display)
	h.Join(sid, contestant)
	h.Join(uuid.New(), other)

	require.NoError(t, h.Publish(context.Background(), sid, NewBuzz("Ali")))

	for _, c := range []*Client{display, contestant} {
		ev := recv(t, c)
		assert.Equal(t, Buzz, ev.Type)
		assert.Equal(t, "Ali", ev.ContestantName)
		assert.Equal(t, sid, ev.SessionID)
	}
	assert.Len(t, other.OutChan, 0)
}

func TestPublishPreservesOrder(t *testing.T) {
	h := New(quietLogger())
	sid := uuid.New()
	c := NewClient(models.RoleDisplay, "", 16, quietLogger())
	h.Join(sid, c)

	for _, l := range []string{"أ", "ب", "ت"} {
		require.NoError(t, h.Publish(context.Background(), sid, NewQuestionRevealed(l, "q "+l)))
	}
	assert.Equal(t, "أ", recv(t, c).Letter)
	assert.Equal(t, "ب", recv(t, c).Letter)
	assert.Equal(t, "ت", recv(t, c).Letter)
}

func TestLeaveIsIdempotent(t *testing.T) {
	h := New(quietLogger())
	sid := uuid.New()
	c := NewClient(models.RoleDisplay, "", 4, quietLogger())

	h.Leave(sid, c)
	h.Join(sid, c)
	assert.Equal(t, 1, h.GroupSize(sid))
	h.Leave(sid, c)
	h.Leave(sid, c)
	assert.Equal(t, 0, h.GroupSize(sid))

	require.NoError(t, h.Publish(context.Background(), sid, NewBuzz("x")))
	assert.Len(t, c.OutChan, 0)
}

func TestLateJoinerMissesEarlierEvents(t *testing.T) {
	h := New(quietLogger())
	sid := uuid.New()
	require.NoError(t, h.Publish(context.Background(), sid, NewBuzz("early")))

	c := NewClient(models.RoleContestant, "late", 4, quietLogger())
	h.Join(sid, c)
	assert.Len(t, c.OutChan, 0)
}

func TestSlowOrClosedClientDoesNotBlockOthers(t *testing.T) {
	h := New(quietLogger())
	sid := uuid.New()
	slow := NewClient(models.RoleContestant, "slow", 1, quietLogger())
	gone := NewClient(models.RoleContestant, "gone", 1, quietLogger())
	fast := NewClient(models.RoleDisplay, "", 8, quietLogger())
	h.Join(sid, slow)
	h.Join(sid, gone)
	h.Join(sid, fast)
	gone.Close()
	gone.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Publish(context.Background(), sid, NewGenericUpdate("tick", map[string]interface{}{"i": i})))
	}

	assert.Len(t, slow.OutChan, 1)
	assert.Len(t, gone.OutChan, 0)
	assert.Len(t, fast.OutChan, 3)
	assert.Equal(t, "tick", recv(t, fast).Payload["kind"])
}

func TestConcurrentJoinLeavePublish(t *testing.T) {
	h := New(quietLogger())
	sid := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := NewClient(models.RoleContestant, "", 2, quietLogger())
			h.Join(sid, c)
			h.Leave(sid, c)
		}()
		go func() {
			defer wg.Done()
			_ = h.Publish(context.Background(), sid, NewBuzz("b"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, h.GroupSize(sid))
}

func TestRedisBridgeRelaysIntoLocalHub(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	h := New(quietLogger())
	bridge := NewRedisBridge(rdb, h, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := bridge.Subscribe(ctx)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- sub.Relay(ctx) }()

	sid := uuid.New()
	c := NewClient(models.RoleDisplay, "", 4, quietLogger())
	h.Join(sid, c)

	require.NoError(t, bridge.Publish(ctx, sid, NewQuestionRevealed("ج", "Capital of Egypt?")))
	require.NoError(t, bridge.Publish(ctx, sid, NewBuzz("Sara")))

	first := recv(t, c)
	assert.Equal(t, QuestionRevealed, first.Type)
	assert.Equal(t, "Capital of Egypt?", first.QuestionText)
	assert.Equal(t, sid, first.SessionID)
	assert.Equal(t, "Sara", recv(t, c).ContestantName)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
