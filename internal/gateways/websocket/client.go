package websocket

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"feedsync/internal/app/feed"
	"feedsync/internal/utils"
)

const (
	EventFeedConnected    = "feed_connected"
	EventFeedDisconnected = "feed_disconnected"

	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// frame is one JSON message on the wire. Event names follow the remote
// backend's bus: message_created, message_updated, message_deleted.
type frame struct {
	Event   string        `json:"event"`
	Key     string        `json:"key"`
	Message *feed.Message `json:"message,omitempty"`
}

// Client subscribes to the remote log's live change feed over a websocket.
// The subscription channel stays open across reconnects: on loss the client
// redials with capped backoff, the remote redelivers its tail and the
// reconciler's dedup set absorbs the duplicates. Connection-state changes
// are published on the event bus as a degraded-state signal.
type Client struct {
	url       string
	logger    *zap.SugaredLogger
	bus       *utils.EventBus
	connected atomic.Bool
}

func NewClient(wsURL string, logger *zap.Logger, bus *utils.EventBus) *Client {
	return &Client{
		url:    wsURL,
		logger: logger.Sugar(),
		bus:    bus,
	}
}

func (c *Client) SubscribeTail(ctx context.Context, n int) (<-chan feed.Event, error) {
	tailURL, err := c.tailURL(n)
	if err != nil {
		return nil, err
	}

	events := make(chan feed.Event, 64)
	go c.run(ctx, tailURL, events)
	return events, nil
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) tailURL(n int) (string, error) {
	parsed, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("invalid feed websocket url %q: %w", c.url, err)
	}
	query := parsed.Query()
	query.Set("tail", strconv.Itoa(n))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (c *Client) run(ctx context.Context, tailURL string, events chan<- feed.Event) {
	defer close(events)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, tailURL, nil)
		if err != nil {
			c.logger.Warnw("Feed dial failed",
				"url", tailURL,
				"retry_in", backoff.String(),
				"error", err,
			)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		c.setConnected(true)
		backoff = initialBackoff

		if err := c.readLoop(ctx, conn, events); err != nil {
			c.logger.Warnw("Feed subscription lost", "error", err)
		}
		conn.Close()
		c.setConnected(false)

		if !sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, events chan<- feed.Event) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("failed to read feed frame: %w", err)
		}

		ev, ok := translate(f)
		if !ok {
			c.logger.Debugw("Unknown feed frame ignored", "event", f.Event, "key", f.Key)
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) setConnected(connected bool) {
	if c.connected.Swap(connected) == connected {
		return
	}
	name := EventFeedDisconnected
	if connected {
		name = EventFeedConnected
		c.logger.Infow("Feed connected", "url", c.url)
	}
	if c.bus != nil {
		c.bus.Publish(name, c.url)
	}
}

func translate(f frame) (feed.Event, bool) {
	var kind feed.EventKind
	switch f.Event {
	case "message_created":
		kind = feed.EventInsert
	case "message_updated":
		kind = feed.EventUpdate
	case "message_deleted":
		kind = feed.EventDelete
	default:
		return feed.Event{}, false
	}

	key := f.Key
	if key == "" && f.Message != nil {
		key = f.Message.Key
	}
	return feed.Event{Kind: kind, Key: key, Message: f.Message}, true
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
