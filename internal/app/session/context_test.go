package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextBeginOnce(t *testing.T) {
	sess := NewContext("me")
	require.False(t, sess.Began())

	baseline := time.UnixMilli(1000).UTC()
	watermark := time.UnixMilli(500).UTC()
	sess.Begin(baseline, watermark)

	require.True(t, sess.Began())
	assert.Equal(t, baseline, sess.Baseline())
	assert.Equal(t, watermark, sess.Watermark())

	// The baseline is set once per session and never recomputed.
	sess.Begin(time.UnixMilli(9000).UTC(), time.UnixMilli(9000).UTC())
	assert.Equal(t, baseline, sess.Baseline())
	assert.Equal(t, watermark, sess.Watermark())
}

func TestWatermarkMonotonic(t *testing.T) {
	sess := NewContext("me")
	sess.Begin(time.UnixMilli(1000).UTC(), time.UnixMilli(500).UTC())

	assert.True(t, sess.AdvanceWatermark(time.UnixMilli(800).UTC()))
	assert.Equal(t, time.UnixMilli(800).UTC(), sess.Watermark())

	assert.False(t, sess.AdvanceWatermark(time.UnixMilli(600).UTC()), "a stale read never rewinds the watermark")
	assert.Equal(t, time.UnixMilli(800).UTC(), sess.Watermark())

	assert.False(t, sess.AdvanceWatermark(time.UnixMilli(800).UTC()), "equal timestamps do not advance")
}

func TestContextIdentity(t *testing.T) {
	a := NewContext("me")
	b := NewContext("me")
	assert.Equal(t, "me", a.UserID())
	assert.NotEqual(t, a.ID(), b.ID())
}
