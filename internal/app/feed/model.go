package feed

import (
	"context"
	"time"

	"feedsync/internal/app/profile"
)

// Message mirrors one entry of the remote log. The key is opaque, immutable
// and lexicographically ordered consistent with log insertion order; content
// fields mutate on update events until the entry is deleted.
type Message struct {
	Key         string          `json:"key"`
	AuthorID    string          `json:"author_id"`
	Body        string          `json:"body,omitempty"`
	Attachments []*Attachment   `json:"attachments,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Edited      bool            `json:"edited"`
	Likes       map[string]bool `json:"likes,omitempty"`
	ReplyTo     *ReplySnapshot  `json:"reply_to,omitempty"`
}

type Attachment struct {
	FileID      string `json:"file_id"`
	FileName    string `json:"file_name"`
	FileURL     string `json:"file_url"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
}

// ReplySnapshot is a denormalized copy of the quoted message, not a live
// link; it does not change when the quoted message is edited or deleted.
type ReplySnapshot struct {
	QuotedText string `json:"quoted_text"`
	AuthorName string `json:"author_name"`
}

type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// Event is one change-feed entry. Message is nil for deletes.
type Event struct {
	Kind    EventKind `json:"kind"`
	Key     string    `json:"key"`
	Message *Message  `json:"message,omitempty"`
}

// Log is the remote, append-mostly ordered source of message events.
type Log interface {
	SubscribeTail(ctx context.Context, n int) (<-chan Event, error)
	FetchPage(ctx context.Context, beforeKey string, limit int) ([]*Message, error)
	Get(ctx context.Context, key string) (*Message, error)
}

// Renderer is the presentation boundary. The engine never touches
// presentation directly; a headless implementation is enough for tests.
type Renderer interface {
	OnMessageReady(msg *Message, prof *profile.Profile, position int)
	OnMessageUpdated(key string, msg *Message, prof *profile.Profile)
	OnMessageRemoved(key string)
	OnUnreadCountChanged(n int)
	OnNewMessage(msg *Message)
	OnFeedStateChanged(connected bool)
}

// Notifier decides whether a committed insert should raise an alert.
type Notifier interface {
	ShouldNotify(msg *Message) bool
}

// UnreadCounter recomputes the unread badge from the materialized store.
type UnreadCounter interface {
	Recompute() int
}

// ReadTracker is the read-state surface the trigger boundary consumes.
type ReadTracker interface {
	UnreadCounter
	UnreadKeys() []string
	AdvanceWatermark(ctx context.Context) int
}
