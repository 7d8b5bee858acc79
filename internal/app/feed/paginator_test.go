package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"feedsync/internal/app/profile"
	"feedsync/internal/app/session"
)

type controlledLog struct {
	fakeLog
	started  chan struct{}
	release  chan struct{}
	fetches  atomic.Int32
	fetchErr error
	result   []*Message
}

func newControlledLog() *controlledLog {
	return &controlledLog{
		fakeLog: *newFakeLog(),
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (c *controlledLog) FetchPage(ctx context.Context, beforeKey string, limit int) ([]*Message, error) {
	c.fetches.Add(1)
	c.started <- struct{}{}
	select {
	case <-c.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return c.result, nil
}

func newPaginatorFixture(t *testing.T, log Log, store *Store) *Paginator {
	t.Helper()

	logger := zap.NewNop()
	sess := session.NewContext("me")
	sess.Begin(time.UnixMilli(1000).UTC(), time.UnixMilli(1000).UTC())

	cache := profile.NewCache(newBlockingProfiles(), logger)
	recon := NewReconciler(log, cache, store, &recordingRenderer{}, &stubNotifier{}, &countingUnread{}, sess, logger, 50)
	return NewPaginator(log, store, recon, logger, 3, time.Second)
}

func TestPaginatorAllowsOneOutstandingFetch(t *testing.T) {
	log := newControlledLog()
	store := NewStore(500, 250)
	store.Insert(testMessage("100", "u1", 100))

	paginator := newPaginatorFixture(t, log, store)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		paginator.LoadOlder(context.Background())
	}()

	<-log.started
	assert.True(t, paginator.InFlight())

	// The concurrent call must return immediately as a no-op.
	count, err := paginator.LoadOlder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, int32(1), log.fetches.Load(), "exactly one fetch may be outstanding")

	close(log.release)
	wg.Wait()
	assert.False(t, paginator.InFlight())
}

func TestPaginatorShortPageClearsMoreAvailable(t *testing.T) {
	log := newControlledLog()
	close(log.release)
	log.result = []*Message{testMessage("050", "u1", 50)} // fewer than page size 3

	store := NewStore(500, 250)
	store.Insert(testMessage("100", "u1", 100))

	paginator := newPaginatorFixture(t, log, store)

	count, err := paginator.LoadOlder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.False(t, store.MoreAvailable())

	// With the flag cleared, further calls stop fetching.
	count, err = paginator.LoadOlder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, int32(1), log.fetches.Load())
}

func TestPaginatorFailureReleasesGuardAndKeepsMore(t *testing.T) {
	log := newControlledLog()
	close(log.release)
	log.fetchErr = errors.New("upstream unavailable")

	store := NewStore(500, 250)
	store.Insert(testMessage("100", "u1", 100))

	paginator := newPaginatorFixture(t, log, store)

	_, err := paginator.LoadOlder(context.Background())
	require.Error(t, err)
	assert.False(t, paginator.InFlight(), "a failed fetch must release the in-flight guard")
	assert.True(t, store.MoreAvailable(), "a failed fetch must not consume the cursor")

	// The caller may retry.
	log.fetchErr = nil
	log.result = []*Message{testMessage("090", "u1", 90), testMessage("091", "u1", 91), testMessage("092", "u1", 92)}
	count, err := paginator.LoadOlder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.True(t, store.MoreAvailable())
}

func TestPaginatorEmptyStoreIsNoop(t *testing.T) {
	log := newControlledLog()
	close(log.release)

	paginator := newPaginatorFixture(t, log, NewStore(500, 250))

	count, err := paginator.LoadOlder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, int32(0), log.fetches.Load(), "pagination needs at least one loaded message for a cursor")
}
