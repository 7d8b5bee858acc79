package notify

import (
	"feedsync/internal/app/feed"
	"feedsync/internal/app/session"
)

// Policy classifies committed inserts as alert-worthy. Only messages that
// arrived after this session's baseline and were authored by someone else
// qualify; updates and deletes never notify. Delivery itself (sound, push)
// belongs to an external collaborator.
type Policy struct {
	sess *session.Context
}

func NewPolicy(sess *session.Context) *Policy {
	return &Policy{sess: sess}
}

func (p *Policy) ShouldNotify(msg *feed.Message) bool {
	if msg == nil {
		return false
	}
	return msg.CreatedAt.After(p.sess.Baseline()) && msg.AuthorID != p.sess.UserID()
}
