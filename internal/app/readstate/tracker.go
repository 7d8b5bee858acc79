package readstate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"feedsync/internal/app/feed"
	"feedsync/internal/app/session"
)

// Store persists the read watermark remotely, one timestamp per user.
type Store interface {
	Read(ctx context.Context, userID string) (time.Time, error)
	Write(ctx context.Context, userID string, t time.Time) error
}

// Tracker maintains the session's read watermark and derives the unread
// count from the materialized feed.
type Tracker struct {
	sess     *session.Context
	store    Store
	feed     *feed.Store
	renderer feed.Renderer
	logger   *zap.SugaredLogger
}

func NewTracker(sess *session.Context, store Store, feedStore *feed.Store, renderer feed.Renderer, logger *zap.Logger) *Tracker {
	return &Tracker{
		sess:     sess,
		store:    store,
		feed:     feedStore,
		renderer: renderer,
		logger:   logger.Sugar(),
	}
}

// Load reads the persisted watermark and begins the session context with it.
// Bootstrap calls this before the reconciler subscribes, so the first insert
// is never classified against a watermark that has not been read yet. A
// failed read degrades to the zero watermark rather than blocking the
// session.
func (t *Tracker) Load(ctx context.Context) error {
	watermark, err := t.store.Read(ctx, t.sess.UserID())
	if err != nil {
		t.logger.Warnw("Watermark read failed, starting with zero watermark",
			"user_id", t.sess.UserID(),
			"error", err,
		)
		watermark = time.Time{}
	}
	t.sess.Begin(time.Now().UTC(), watermark)
	t.logger.Infow("Watermark loaded",
		"user_id", t.sess.UserID(),
		"watermark", watermark,
		"baseline", t.sess.Baseline(),
	)
	return nil
}

// Recompute counts materialized messages newer than the watermark that were
// not authored by the session user, publishes the count to the renderer and
// returns it.
func (t *Tracker) Recompute() int {
	count := len(t.UnreadKeys())
	t.renderer.OnUnreadCountChanged(count)
	return count
}

// UnreadKeys returns the keys currently flagged unread, in log order.
func (t *Tracker) UnreadKeys() []string {
	watermark := t.sess.Watermark()
	var keys []string
	for _, msg := range t.feed.Snapshot() {
		if msg.CreatedAt.After(watermark) && msg.AuthorID != t.sess.UserID() {
			keys = append(keys, msg.Key)
		}
	}
	return keys
}

// AdvanceWatermark moves the watermark to now in response to the "user is at
// the bottom of the feed" signal. Persistence is best effort: a failed write
// is logged and local state still advances.
func (t *Tracker) AdvanceWatermark(ctx context.Context) int {
	now := time.Now().UTC()
	if !t.sess.AdvanceWatermark(now) {
		return t.Recompute()
	}
	if err := t.store.Write(ctx, t.sess.UserID(), now); err != nil {
		t.logger.Warnw("Watermark write failed, local state advanced anyway",
			"user_id", t.sess.UserID(),
			"watermark", now,
			"error", err,
		)
	}
	return t.Recompute()
}
