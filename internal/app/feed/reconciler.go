package feed

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"feedsync/internal/app/profile"
	"feedsync/internal/app/session"
)

const (
	DefaultTailSize = 50

	inputBuffer  = 128
	commitBuffer = 128
)

var closedReady = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// pendingEvent is one slot of the sequencing gate. ready closes once the
// event is committable: immediately for updates and deletes, after profile
// enrichment for inserts.
type pendingEvent struct {
	ev     Event
	ready  chan struct{}
	prof   *profile.Profile
	unread bool
}

// Reconciler consumes the remote change feed and applies it exactly once, in
// arrival order, to the store and the renderer. Profile enrichment runs
// concurrently per event, but results commit strictly in arrival order
// through the sequencing gate: a completed enrichment waits until all its
// predecessors have committed.
type Reconciler struct {
	log      Log
	cache    *profile.Cache
	store    *Store
	renderer Renderer
	notifier Notifier
	unread   UnreadCounter
	sess     *session.Context
	logger   *zap.SugaredLogger
	tailSize int

	input   chan Event
	commits chan *pendingEvent

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewReconciler(
	log Log,
	cache *profile.Cache,
	store *Store,
	renderer Renderer,
	notifier Notifier,
	unread UnreadCounter,
	sess *session.Context,
	logger *zap.Logger,
	tailSize int,
) *Reconciler {
	if tailSize <= 0 {
		tailSize = DefaultTailSize
	}
	return &Reconciler{
		log:      log,
		cache:    cache,
		store:    store,
		renderer: renderer,
		notifier: notifier,
		unread:   unread,
		sess:     sess,
		logger:   logger.Sugar(),
		tailSize: tailSize,
		input:    make(chan Event, inputBuffer),
		commits:  make(chan *pendingEvent, commitBuffer),
		seen:     make(map[string]struct{}),
	}
}

// Run subscribes to the tail of the remote log and processes events until
// the context is cancelled. It must be called exactly once per session,
// after the session context has begun (watermark loaded, baseline set);
// otherwise historical messages would be classified against a zero
// watermark.
func (r *Reconciler) Run(ctx context.Context) error {
	if !r.sess.Began() {
		return fmt.Errorf("session context has not begun: watermark must be loaded before subscribing")
	}

	events, err := r.log.SubscribeTail(ctx, r.tailSize)
	if err != nil {
		return fmt.Errorf("failed to subscribe to feed tail: %w", err)
	}

	go r.commitLoop(ctx)

	r.logger.Infow("Reconciler started",
		"session_id", r.sess.ID(),
		"tail_size", r.tailSize,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("feed subscription closed")
			}
			r.dispatch(ctx, ev)
		case ev := <-r.input:
			r.dispatch(ctx, ev)
		}
	}
}

// EnqueueInsert feeds a fetched page entry through the same insert path as
// live events: dedup, enrichment and the sequencing gate all apply.
func (r *Reconciler) EnqueueInsert(ctx context.Context, msg *Message) error {
	select {
	case r.input <- Event{Kind: EventInsert, Key: msg.Key, Message: msg}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) dispatch(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventInsert:
		if ev.Message == nil {
			r.logger.Warnw("Insert event without message dropped", "key", ev.Key)
			return
		}
		if !r.markSeen(ev.Key) {
			r.logger.Debugw("Duplicate insert suppressed", "key", ev.Key)
			return
		}
		p := &pendingEvent{
			ev:     ev,
			ready:  make(chan struct{}),
			unread: r.classifyUnread(ev.Message),
		}
		select {
		case r.commits <- p:
		case <-ctx.Done():
			return
		}
		go func() {
			p.prof = r.cache.Resolve(ctx, ev.Message.AuthorID)
			close(p.ready)
		}()

	case EventUpdate, EventDelete:
		// No re-enrichment; the cached profile is reused at commit time.
		// Routing through the gate keeps per-key order: an update never
		// overtakes the insert it follows.
		p := &pendingEvent{ev: ev, ready: closedReady}
		select {
		case r.commits <- p:
		case <-ctx.Done():
		}

	default:
		r.logger.Warnw("Unknown event kind dropped", "kind", ev.Kind, "key", ev.Key)
	}
}

// commitLoop releases gate slots strictly in arrival order, withholding a
// ready result until its predecessors have committed.
func (r *Reconciler) commitLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-r.commits:
			select {
			case <-p.ready:
			case <-ctx.Done():
				return
			}
			r.apply(p)
		}
	}
}

func (r *Reconciler) apply(p *pendingEvent) {
	switch p.ev.Kind {
	case EventInsert:
		r.applyInsert(p)
	case EventUpdate:
		r.applyUpdate(p.ev)
	case EventDelete:
		r.applyDelete(p.ev)
	}
}

func (r *Reconciler) applyInsert(p *pendingEvent) {
	msg := p.ev.Message
	position, trimmed, inserted := r.store.Insert(msg)
	r.forgetSeen(trimmed)
	if !inserted {
		return
	}

	r.renderer.OnMessageReady(msg, p.prof, position)

	if r.notifier.ShouldNotify(msg) {
		r.renderer.OnNewMessage(msg)
	}
	if p.unread {
		r.unread.Recompute()
	}
}

func (r *Reconciler) applyUpdate(ev Event) {
	if ev.Message == nil {
		r.logger.Warnw("Update event without message dropped", "key", ev.Key)
		return
	}
	if !r.store.Update(ev.Message) {
		r.logger.Debugw("Update for unmaterialized key ignored", "key", ev.Key)
		return
	}
	prof := r.cache.Peek(ev.Message.AuthorID)
	if prof == nil {
		prof = profile.Unknown(ev.Message.AuthorID)
	}
	r.renderer.OnMessageUpdated(ev.Key, ev.Message, prof)
}

func (r *Reconciler) applyDelete(ev Event) {
	if !r.store.Delete(ev.Key) {
		return
	}
	r.renderer.OnMessageRemoved(ev.Key)
	r.unread.Recompute()
}

// classifyUnread happens on arrival, against the watermark loaded at session
// start.
func (r *Reconciler) classifyUnread(msg *Message) bool {
	return msg.CreatedAt.After(r.sess.Watermark()) && msg.AuthorID != r.sess.UserID()
}

// markSeen records the key in the dedup set and reports whether it was new.
// The subscription redelivers the whole tail on resubscribe and pages can
// overlap live events; this set absorbs all of it.
func (r *Reconciler) markSeen(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = struct{}{}
	return true
}

// forgetSeen drops trimmed keys from the dedup set so detached messages stay
// re-fetchable via pagination.
func (r *Reconciler) forgetSeen(keys []string) {
	if len(keys) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		delete(r.seen, key)
	}
}
