package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypingExpiry(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base
	tracker := NewTypingTracker(WithTypingClock(func() time.Time { return now }))

	tracker.Set("lev")
	assert.True(t, tracker.IsTyping("lev"))

	t.Run("still typing just before the TTL", func(t *testing.T) {
		now = base.Add(DefaultTypingTTL - time.Millisecond)
		assert.True(t, tracker.IsTyping("lev"))
		assert.Empty(t, tracker.Sweep(now))
		assert.True(t, tracker.IsTyping("lev"))
	})

	t.Run("expired exactly at the TTL", func(t *testing.T) {
		now = base.Add(DefaultTypingTTL)
		assert.False(t, tracker.IsTyping("lev"))
		assert.Equal(t, []string{"lev"}, tracker.Sweep(now))
		assert.False(t, tracker.IsTyping("lev"))
	})

	t.Run("swept entries are gone", func(t *testing.T) {
		assert.Empty(t, tracker.Sweep(now))
	})
}

func TestTypingRefresh(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base
	tracker := NewTypingTracker(WithTypingClock(func() time.Time { return now }))

	tracker.Set("lev")
	now = base.Add(2 * time.Second)
	tracker.Set("lev")

	// the refresh restarted the clock
	now = base.Add(4 * time.Second)
	assert.True(t, tracker.IsTyping("lev"))
	assert.Empty(t, tracker.Sweep(now))

	now = base.Add(5 * time.Second)
	assert.Equal(t, []string{"lev"}, tracker.Sweep(now))
}

func TestTypingClear(t *testing.T) {
	tracker := NewTypingTracker()
	tracker.Set("lev")
	tracker.Clear("lev")
	assert.False(t, tracker.IsTyping("lev"))
	assert.Empty(t, tracker.Sweep(time.Now().Add(time.Minute)))
}

func TestTypingSweepReturnsSorted(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base
	tracker := NewTypingTracker(WithTypingClock(func() time.Time { return now }))

	tracker.Set("zed")
	tracker.Set("ann")
	tracker.Set("lev")

	now = base.Add(DefaultTypingTTL)
	assert.Equal(t, []string{"ann", "lev", "zed"}, tracker.Sweep(now))
}

func TestTypingRun(t *testing.T) {
	tracker := NewTypingTracker(WithTypingTTL(10 * time.Millisecond))
	tracker.Set("lev")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	expired := make(chan []string, 1)
	go tracker.Run(ctx, 5*time.Millisecond, func(usernames []string) {
		select {
		case expired <- usernames:
		default:
		}
	})

	select {
	case usernames := <-expired:
		require.Equal(t, []string{"lev"}, usernames)
	case <-time.After(time.Second):
		t.Fatal("sweep never fired")
	}
	assert.False(t, tracker.IsTyping("lev"))
}
