package core

import (
	"context"
	"slices"
	"time"
)

const (
	// DefaultTypingTTL is how long a typing entry lives without a refresh.
	DefaultTypingTTL = 3 * time.Second
	// DefaultSweepInterval is the cadence of the background expiry sweep.
	DefaultSweepInterval = time.Second
)

// TypingTracker records, per user, when they last typed. Entries expire after
// the TTL via Sweep, which runs on a fixed interval independent of message
// traffic (see Run).
type TypingTracker struct {
	entries *SyncMap[string, time.Time]
	ttl     time.Duration
	now     func() time.Time
}

type TypingOption func(*TypingTracker)

func WithTypingTTL(ttl time.Duration) TypingOption {
	return func(t *TypingTracker) {
		t.ttl = ttl
	}
}

func WithTypingClock(now func() time.Time) TypingOption {
	return func(t *TypingTracker) {
		t.now = now
	}
}

func NewTypingTracker(opts ...TypingOption) *TypingTracker {
	t := &TypingTracker{
		entries: NewSyncMap[string, time.Time](),
		ttl:     DefaultTypingTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Set records that the user typed just now, refreshing any existing entry.
func (t *TypingTracker) Set(username string) {
	t.entries.Store(username, t.now())
}

func (t *TypingTracker) Clear(username string) {
	t.entries.Delete(username)
}

// IsTyping reports whether the user has an unexpired typing entry.
func (t *TypingTracker) IsTyping(username string) bool {
	at, ok := t.entries.Load(username)
	if !ok {
		return false
	}
	return t.now().Sub(at) < t.ttl
}

// Sweep removes every entry whose age is at least the TTL and returns the
// affected usernames, sorted.
func (t *TypingTracker) Sweep(now time.Time) []string {
	expired := t.entries.DeleteIf(func(_ string, at time.Time) bool {
		return now.Sub(at) >= t.ttl
	})
	slices.Sort(expired)
	return expired
}

// Run drives Sweep on the given interval until the context is cancelled,
// passing the expired usernames of each tick to onExpired. It blocks; run it
// on its own goroutine.
func (t *TypingTracker) Run(ctx context.Context, interval time.Duration, onExpired func([]string)) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if expired := t.Sweep(t.now()); len(expired) > 0 {
				onExpired(expired)
			}
		}
	}
}
