package letters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAllocator(t *testing.T) (*Allocator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewAllocator(cache.NewRedisStore(rdb, false)), mr
}

func TestAlphabetHas28DistinctLetters(t *testing.T) {
	assert.Len(t, Alphabet, 28)
	assert.Len(t, alphabetIndex, 28)
	assert.True(t, IsLetter("أ"))
	assert.False(t, IsLetter("A"))
}

func TestShuffleIsPermutation(t *testing.T) {
	order, err := Shuffle()
	require.NoError(t, err)
	assert.NoError(t, ValidateOrder(order))
	assert.ElementsMatch(t, Alphabet, order)
}

func TestFreeOrderSharedAndWithoutTTL(t *testing.T) {
	a, mr := newAllocator(t)
	ctx := context.Background()

	first, err := a.FreeOrder(ctx)
	require.NoError(t, err)
	second, err := a.FreeOrder(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, time.Duration(0), mr.TTL(FreeKey))
}

func TestConcurrentFirstRequestsAgree(t *testing.T) {
	a, _ := newAllocator(t)
	ctx := context.Background()

	const n = 16
	results := make([][]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, err := a.FreeOrder(ctx)
			assert.NoError(t, err)
			results[i] = order
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, results[0], results[i])
	}
}

func TestSessionOrderPerSessionWithTTL(t *testing.T) {
	a, mr := newAllocator(t)
	ctx := context.Background()
	s1, s2 := uuid.New(), uuid.New()

	o1, err := a.SessionOrder(ctx, s1)
	require.NoError(t, err)
	again, err := a.SessionOrder(ctx, s1)
	require.NoError(t, err)
	assert.Equal(t, o1, again)

	_, err = a.SessionOrder(ctx, s2)
	require.NoError(t, err)

	assert.Equal(t, PaidTTL, mr.TTL(SessionKey(s1)))
	assert.True(t, mr.Exists(SessionKey(s2)))
}

func TestSetOrderSuppressedForFreeTier(t *testing.T) {
	a, _ := newAllocator(t)
	ctx := context.Background()

	shared, err := a.FreeOrder(ctx)
	require.NoError(t, err)

	forced := make([]string, len(Alphabet))
	copy(forced, Alphabet)
	require.NoError(t, a.SetOrder(ctx, uuid.New(), false, forced))

	after, err := a.FreeOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, shared, after)
}

func TestSetOrderPaid(t *testing.T) {
	a, _ := newAllocator(t)
	ctx := context.Background()
	id := uuid.New()

	forced := make([]string, len(Alphabet))
	copy(forced, Alphabet)
	require.NoError(t, a.SetOrder(ctx, id, true, forced))

	got, err := a.Order(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, forced, got)
}

func TestSetOrderRejectsNonPermutation(t *testing.T) {
	a, _ := newAllocator(t)
	err := a.SetOrder(context.Background(), uuid.New(), true, []string{"أ"})
	assert.Equal(t, apperror.ReasonInvalidOrder, apperror.ReasonOf(err))

	dup := make([]string, len(Alphabet))
	copy(dup, Alphabet)
	dup[1] = dup[0]
	err = ValidateOrder(dup)
	assert.Equal(t, apperror.ReasonInvalidOrder, apperror.ReasonOf(err))
}

func TestCorruptStoredOrderIsReplaced(t *testing.T) {
	a, _ := newAllocator(t)
	ctx := context.Background()
	require.NoError(t, a.store.Set(ctx, FreeKey, []string{"أ", "ب"}, cache.NoExpiry))

	order, err := a.FreeOrder(ctx)
	require.NoError(t, err)
	assert.NoError(t, ValidateOrder(order))

	again, err := a.FreeOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, order, again)

	sessionID := uuid.New()
	require.NoError(t, a.store.Set(ctx, SessionKey(sessionID), []string{"ب", "ب"}, time.Hour))
	paid, err := a.SessionOrder(ctx, sessionID)
	require.NoError(t, err)
	assert.NoError(t, ValidateOrder(paid))
}
