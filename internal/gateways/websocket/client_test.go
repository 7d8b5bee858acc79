package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"feedsync/internal/app/feed"
)

func TestTranslateFrames(t *testing.T) {
	msg := &feed.Message{Key: "100", AuthorID: "u1"}

	tests := []struct {
		name  string
		frame frame
		want  feed.EventKind
		ok    bool
	}{
		{"created maps to insert", frame{Event: "message_created", Key: "100", Message: msg}, feed.EventInsert, true},
		{"updated maps to update", frame{Event: "message_updated", Key: "100", Message: msg}, feed.EventUpdate, true},
		{"deleted maps to delete", frame{Event: "message_deleted", Key: "100"}, feed.EventDelete, true},
		{"unknown frame dropped", frame{Event: "nickname_updated"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := translate(tt.frame)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, ev.Kind)
				assert.Equal(t, "100", ev.Key)
			}
		})
	}
}

func TestTranslateFallsBackToMessageKey(t *testing.T) {
	ev, ok := translate(frame{
		Event:   "message_created",
		Message: &feed.Message{Key: "100"},
	})
	require.True(t, ok)
	assert.Equal(t, "100", ev.Key)
}

func TestTailURL(t *testing.T) {
	client := NewClient("ws://feed.local/ws?session_key=abc", zap.NewNop(), nil)

	tailURL, err := client.tailURL(50)
	require.NoError(t, err)
	assert.Equal(t, "ws://feed.local/ws?session_key=abc&tail=50", tailURL)
}

func TestBackoffIsCapped(t *testing.T) {
	backoff := initialBackoff
	for i := 0; i < 10; i++ {
		backoff = nextBackoff(backoff)
	}
	assert.Equal(t, maxBackoff, backoff)
	assert.Equal(t, 2*time.Second, nextBackoff(initialBackoff))
}
