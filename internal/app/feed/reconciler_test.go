package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"feedsync/internal/app/profile"
	"feedsync/internal/app/session"
)

type fakeLog struct {
	events chan Event
	pages  map[string][]*Message
}

func newFakeLog() *fakeLog {
	return &fakeLog{
		events: make(chan Event, 64),
		pages:  make(map[string][]*Message),
	}
}

func (f *fakeLog) SubscribeTail(ctx context.Context, n int) (<-chan Event, error) {
	return f.events, nil
}

func (f *fakeLog) FetchPage(ctx context.Context, beforeKey string, limit int) ([]*Message, error) {
	return f.pages[beforeKey], nil
}

func (f *fakeLog) Get(ctx context.Context, key string) (*Message, error) {
	return nil, errors.New("not implemented")
}

type recordingRenderer struct {
	mu      sync.Mutex
	ready   []string
	updated []string
	removed []string
	alerts  []string
	unread  []int
}

func (r *recordingRenderer) OnMessageReady(msg *Message, prof *profile.Profile, position int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = append(r.ready, msg.Key)
}

func (r *recordingRenderer) OnMessageUpdated(key string, msg *Message, prof *profile.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, key)
}

func (r *recordingRenderer) OnMessageRemoved(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, key)
}

func (r *recordingRenderer) OnUnreadCountChanged(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unread = append(r.unread, n)
}

func (r *recordingRenderer) OnNewMessage(msg *Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, msg.Key)
}

func (r *recordingRenderer) OnFeedStateChanged(connected bool) {}

func (r *recordingRenderer) readyKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ready...)
}

func (r *recordingRenderer) alertKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.alerts...)
}

func (r *recordingRenderer) updatedKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.updated...)
}

func (r *recordingRenderer) removedKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removed...)
}

// blockingProfiles holds a lookup open until its gate is released, to force
// enrichment to complete out of event order.
type blockingProfiles struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func newBlockingProfiles() *blockingProfiles {
	return &blockingProfiles{gates: make(map[string]chan struct{})}
}

func (s *blockingProfiles) block(userID string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.gates[userID] = gate
	return gate
}

func (s *blockingProfiles) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	s.mu.Lock()
	gate := s.gates[userID]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return &profile.Profile{UserID: userID, DisplayName: "user-" + userID}, nil
}

type stubNotifier struct {
	notify func(*Message) bool
}

func (s *stubNotifier) ShouldNotify(msg *Message) bool {
	if s.notify == nil {
		return false
	}
	return s.notify(msg)
}

type countingUnread struct {
	mu    sync.Mutex
	calls int
}

func (c *countingUnread) Recompute() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 0
}

func (c *countingUnread) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type reconcilerFixture struct {
	log      *fakeLog
	profiles *blockingProfiles
	renderer *recordingRenderer
	notifier *stubNotifier
	unread   *countingUnread
	store    *Store
	sess     *session.Context
	recon    *Reconciler
}

func newReconcilerFixture(t *testing.T, baseline, watermark time.Time) *reconcilerFixture {
	t.Helper()

	f := &reconcilerFixture{
		log:      newFakeLog(),
		profiles: newBlockingProfiles(),
		renderer: &recordingRenderer{},
		notifier: &stubNotifier{},
		unread:   &countingUnread{},
		store:    NewStore(500, 250),
	}
	f.sess = session.NewContext("me")
	f.sess.Begin(baseline, watermark)

	logger := zap.NewNop()
	cache := profile.NewCache(f.profiles, logger)
	f.recon = NewReconciler(f.log, cache, f.store, f.renderer, f.notifier, f.unread, f.sess, logger, 50)
	return f
}

func (f *reconcilerFixture) start(t *testing.T) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go f.recon.Run(ctx)
	return cancel
}

func TestReconcilerCommitsInArrivalOrder(t *testing.T) {
	base := time.UnixMilli(1000).UTC()
	f := newReconcilerFixture(t, base, base)
	cancel := f.start(t)
	defer cancel()

	// The first author's enrichment stalls; the second resolves instantly.
	gate := f.profiles.block("u1")

	f.log.events <- Event{Kind: EventInsert, Key: "100", Message: testMessage("100", "u1", 2000)}
	f.log.events <- Event{Kind: EventInsert, Key: "200", Message: testMessage("200", "u2", 3000)}

	// B's profile is ready but must be withheld behind A.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.renderer.readyKeys(), "no commit may happen before the head of the gate is ready")

	close(gate)

	require.Eventually(t, func() bool {
		return len(f.renderer.readyKeys()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"100", "200"}, f.renderer.readyKeys(),
		"renderer must observe events in arrival order, not enrichment-completion order")
}

func TestReconcilerSuppressesDuplicates(t *testing.T) {
	base := time.UnixMilli(1000).UTC()
	f := newReconcilerFixture(t, base, base)
	cancel := f.start(t)
	defer cancel()

	msg := testMessage("100", "u1", 2000)
	f.log.events <- Event{Kind: EventInsert, Key: "100", Message: msg}
	f.log.events <- Event{Kind: EventInsert, Key: "100", Message: msg}

	// A page fetch that overlaps the live snapshot redelivers the key too.
	require.NoError(t, f.recon.EnqueueInsert(context.Background(), msg))

	require.Eventually(t, func() bool {
		return len(f.renderer.readyKeys()) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, []string{"100"}, f.renderer.readyKeys(), "applying the same insert twice must equal applying it once")
	assert.Equal(t, 1, f.store.Size())
}

func TestReconcilerUpdateNeverOvertakesPendingInsert(t *testing.T) {
	base := time.UnixMilli(1000).UTC()
	f := newReconcilerFixture(t, base, base)
	cancel := f.start(t)
	defer cancel()

	gate := f.profiles.block("u1")

	f.log.events <- Event{Kind: EventInsert, Key: "100", Message: testMessage("100", "u1", 2000)}

	edited := testMessage("100", "u1", 2000)
	edited.Edited = true
	f.log.events <- Event{Kind: EventUpdate, Key: "100", Message: edited}

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.renderer.updatedKeys(), "update must wait behind the pending insert for its key")

	close(gate)

	require.Eventually(t, func() bool {
		return len(f.renderer.updatedKeys()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	stored, ok := f.store.Get("100")
	require.True(t, ok)
	assert.True(t, stored.Edited)
}

func TestReconcilerDelete(t *testing.T) {
	base := time.UnixMilli(1000).UTC()
	f := newReconcilerFixture(t, base, base)
	cancel := f.start(t)
	defer cancel()

	f.log.events <- Event{Kind: EventInsert, Key: "100", Message: testMessage("100", "u1", 2000)}
	f.log.events <- Event{Kind: EventDelete, Key: "100"}

	require.Eventually(t, func() bool {
		return len(f.renderer.removedKeys()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.store.Size())

	// Deleting an unknown key stays silent.
	f.log.events <- Event{Kind: EventDelete, Key: "999"}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"100"}, f.renderer.removedKeys())
}

func TestReconcilerNotifiesQualifyingInsertsOnce(t *testing.T) {
	base := time.UnixMilli(1000).UTC()
	f := newReconcilerFixture(t, base, base)
	f.notifier.notify = func(msg *Message) bool {
		return msg.CreatedAt.After(base) && msg.AuthorID != "me"
	}
	cancel := f.start(t)
	defer cancel()

	f.log.events <- Event{Kind: EventInsert, Key: "050", Message: testMessage("050", "u1", 500)}  // historical
	f.log.events <- Event{Kind: EventInsert, Key: "100", Message: testMessage("100", "me", 2000)} // own message
	f.log.events <- Event{Kind: EventInsert, Key: "200", Message: testMessage("200", "u1", 3000)} // qualifies

	edited := testMessage("200", "u1", 3000)
	edited.Edited = true
	f.log.events <- Event{Kind: EventUpdate, Key: "200", Message: edited}

	require.Eventually(t, func() bool {
		return len(f.renderer.readyKeys()) == 3 && len(f.renderer.updatedKeys()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"200"}, f.renderer.alertKeys(), "exactly one alert per qualifying insert")
}

func TestReconcilerRecomputesUnreadOnUnreadInsert(t *testing.T) {
	watermark := time.UnixMilli(1000).UTC()
	f := newReconcilerFixture(t, watermark, watermark)
	cancel := f.start(t)
	defer cancel()

	f.log.events <- Event{Kind: EventInsert, Key: "050", Message: testMessage("050", "u1", 500)}  // read
	f.log.events <- Event{Kind: EventInsert, Key: "100", Message: testMessage("100", "me", 2000)} // own
	f.log.events <- Event{Kind: EventInsert, Key: "200", Message: testMessage("200", "u1", 3000)} // unread

	require.Eventually(t, func() bool {
		return len(f.renderer.readyKeys()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, f.unread.count(), "only the unread insert triggers a recompute")
}

func TestReconcilerRequiresBegunSession(t *testing.T) {
	f := &reconcilerFixture{
		log:      newFakeLog(),
		profiles: newBlockingProfiles(),
		renderer: &recordingRenderer{},
		notifier: &stubNotifier{},
		unread:   &countingUnread{},
		store:    NewStore(500, 250),
	}
	f.sess = session.NewContext("me")

	logger := zap.NewNop()
	cache := profile.NewCache(f.profiles, logger)
	recon := NewReconciler(f.log, cache, f.store, f.renderer, f.notifier, f.unread, f.sess, logger, 50)

	err := recon.Run(context.Background())
	require.Error(t, err, "subscribing before the watermark is loaded misclassifies the whole backfill")
}
