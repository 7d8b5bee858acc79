package render

import (
	"go.uber.org/zap"

	"feedsync/internal/app/feed"
	"feedsync/internal/app/profile"
)

// Console is the reference Renderer for the headless daemon: it writes the
// reconciled feed to the process log instead of a UI.
type Console struct {
	logger *zap.SugaredLogger
}

func NewConsole(logger *zap.Logger) *Console {
	return &Console{logger: logger.Sugar()}
}

func (c *Console) OnMessageReady(msg *feed.Message, prof *profile.Profile, position int) {
	c.logger.Infow("Message ready",
		"key", msg.Key,
		"author", prof.DisplayName,
		"role", prof.Role,
		"level", prof.Level(),
		"position", position,
		"body", msg.Body,
	)
}

func (c *Console) OnMessageUpdated(key string, msg *feed.Message, prof *profile.Profile) {
	c.logger.Infow("Message updated",
		"key", key,
		"author", prof.DisplayName,
		"edited", msg.Edited,
		"likes", len(msg.Likes),
	)
}

func (c *Console) OnMessageRemoved(key string) {
	c.logger.Infow("Message removed", "key", key)
}

func (c *Console) OnUnreadCountChanged(n int) {
	c.logger.Infow("Unread count changed", "unread", n)
}

func (c *Console) OnNewMessage(msg *feed.Message) {
	c.logger.Infow("New message", "key", msg.Key, "author_id", msg.AuthorID)
}

func (c *Console) OnFeedStateChanged(connected bool) {
	if connected {
		c.logger.Infow("Feed state changed", "connected", true)
	} else {
		c.logger.Warnw("Feed state changed", "connected", false)
	}
}
