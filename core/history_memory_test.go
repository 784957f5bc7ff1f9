package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textInput(sender, content string) MessageCreateInput {
	return MessageCreateInput{
		Kind:    TextMessage,
		Content: content,
		Sender:  sender,
	}
}

func TestMemoryAppend(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns id, timestamp and defaults", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		store := NewMemoryHistoryStore(100, WithClock(func() time.Time { return now }))

		msg, err := store.Append(ctx, textInput("lev", "hi"))
		require.Nil(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, int64(1), msg.ID)
		assert.Equal(t, "lev", msg.Username)
		assert.Equal(t, "hi", msg.Content)
		assert.Equal(t, TextMessage, msg.Kind)
		assert.Equal(t, now, msg.SentAt)
		assert.False(t, msg.Edited)
		assert.Empty(t, msg.ReadBy)
	})

	t.Run("ids are strictly monotonic", func(t *testing.T) {
		store := NewMemoryHistoryStore(2)
		var last int64
		for i := 0; i < 10; i++ {
			msg, err := store.Append(ctx, textInput("lev", fmt.Sprintf("m%d", i)))
			require.Nil(t, err)
			assert.Greater(t, msg.ID, last)
			last = msg.ID
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		store := NewMemoryHistoryStore(100)

		_, err := store.Append(ctx, textInput("lev", ""))
		assert.Equal(t, ErrInvalidMessage, err)

		_, err = store.Append(ctx, MessageCreateInput{Kind: AttachmentMessage, Sender: "lev"})
		assert.Equal(t, ErrInvalidMessage, err)

		_, err = store.Append(ctx, MessageCreateInput{Kind: "carrier-pigeon", Content: "hi", Sender: "lev"})
		assert.Equal(t, ErrInvalidMessage, err)

		snapshot, err := store.Snapshot(ctx)
		require.Nil(t, err)
		assert.Empty(t, snapshot)
	})

	t.Run("accepts attachment with payload", func(t *testing.T) {
		store := NewMemoryHistoryStore(100)
		msg, err := store.Append(ctx, MessageCreateInput{
			Kind:   AttachmentMessage,
			Sender: "lev",
			Attachment: &Attachment{
				Filename: "a.png",
				Size:     42,
				MIMEType: "image/png",
				URL:      "/uploads/a.png",
			},
		})
		require.Nil(t, err)
		require.NotNil(t, msg.Attachment)
		assert.Equal(t, "a.png", msg.Attachment.Filename)
	})
}

func TestMemoryEviction(t *testing.T) {
	ctx := context.Background()

	t.Run("never exceeds the limit, evicts oldest first", func(t *testing.T) {
		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		tick := 0
		store := NewMemoryHistoryStore(100, WithClock(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		}))

		for i := 0; i < 101; i++ {
			_, err := store.Append(ctx, textInput("lev", fmt.Sprintf("m%d", i)))
			require.Nil(t, err)
		}

		snapshot, err := store.Snapshot(ctx)
		require.Nil(t, err)
		require.Len(t, snapshot, 100)

		// the first (earliest timestamped) message is gone, the rest survive
		assert.Equal(t, "m1", snapshot[0].Content)
		assert.Equal(t, "m100", snapshot[99].Content)
		for i := 1; i < len(snapshot); i++ {
			assert.True(t, snapshot[i-1].SentAt.Before(snapshot[i].SentAt))
			assert.Less(t, snapshot[i-1].ID, snapshot[i].ID)
		}
	})

	t.Run("evicted ids are no longer addressable", func(t *testing.T) {
		store := NewMemoryHistoryStore(1)
		first, err := store.Append(ctx, textInput("lev", "first"))
		require.Nil(t, err)
		_, err = store.Append(ctx, textInput("lev", "second"))
		require.Nil(t, err)

		_, err = store.Edit(ctx, first.ID, "lev", "rewritten")
		assert.Equal(t, ErrMessageNotFound, err)
	})
}

func TestMemoryEdit(t *testing.T) {
	ctx := context.Background()

	t.Run("author edits own message", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		store := NewMemoryHistoryStore(100, WithClock(func() time.Time { return now }))
		msg, err := store.Append(ctx, textInput("lev", "hi"))
		require.Nil(t, err)

		edited, err := store.Edit(ctx, msg.ID, "lev", "hello")
		require.Nil(t, err)
		assert.Equal(t, "hello", edited.Content)
		assert.True(t, edited.Edited)
		assert.Equal(t, now, edited.EditedAt)
		assert.Equal(t, msg.SentAt, edited.SentAt)
	})

	t.Run("non-author edit leaves the store untouched", func(t *testing.T) {
		store := NewMemoryHistoryStore(100)
		msg, err := store.Append(ctx, textInput("lev", "hi"))
		require.Nil(t, err)
		before, err := store.Snapshot(ctx)
		require.Nil(t, err)

		_, err = store.Edit(ctx, msg.ID, "cin", "hijacked")
		assert.Equal(t, ErrNotMessageAuthor, err)

		after, err := store.Snapshot(ctx)
		require.Nil(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("unknown id", func(t *testing.T) {
		store := NewMemoryHistoryStore(100)
		_, err := store.Edit(ctx, 404, "lev", "hello")
		assert.Equal(t, ErrMessageNotFound, err)
	})
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("author deletes exactly one message", func(t *testing.T) {
		store := NewMemoryHistoryStore(100)
		first, err := store.Append(ctx, textInput("lev", "first"))
		require.Nil(t, err)
		_, err = store.Append(ctx, textInput("lev", "second"))
		require.Nil(t, err)

		require.Nil(t, store.Delete(ctx, first.ID, "lev"))

		snapshot, err := store.Snapshot(ctx)
		require.Nil(t, err)
		require.Len(t, snapshot, 1)
		assert.Equal(t, "second", snapshot[0].Content)
	})

	t.Run("non-author delete removes nothing", func(t *testing.T) {
		store := NewMemoryHistoryStore(100)
		msg, err := store.Append(ctx, textInput("lev", "hi"))
		require.Nil(t, err)

		err = store.Delete(ctx, msg.ID, "cin")
		assert.Equal(t, ErrNotMessageAuthor, err)

		snapshot, err := store.Snapshot(ctx)
		require.Nil(t, err)
		assert.Len(t, snapshot, 1)
	})

	t.Run("deleted id is gone for good", func(t *testing.T) {
		store := NewMemoryHistoryStore(100)
		msg, err := store.Append(ctx, textInput("lev", "hi"))
		require.Nil(t, err)
		require.Nil(t, store.Delete(ctx, msg.ID, "lev"))
		assert.Equal(t, ErrMessageNotFound, store.Delete(ctx, msg.ID, "lev"))
	})
}

func TestMemoryMarkRead(t *testing.T) {
	ctx := context.Background()

	t.Run("is idempotent", func(t *testing.T) {
		store := NewMemoryHistoryStore(100)
		msg, err := store.Append(ctx, textInput("lev", "hi"))
		require.Nil(t, err)

		require.Nil(t, store.MarkRead(ctx, msg.ID, "cin"))
		require.Nil(t, store.MarkRead(ctx, msg.ID, "cin"))

		snapshot, err := store.Snapshot(ctx)
		require.Nil(t, err)
		assert.Equal(t, []string{"cin"}, snapshot[0].ReadBy)
	})

	t.Run("read set only grows", func(t *testing.T) {
		store := NewMemoryHistoryStore(100)
		msg, err := store.Append(ctx, textInput("lev", "hi"))
		require.Nil(t, err)

		require.Nil(t, store.MarkRead(ctx, msg.ID, "cin"))
		require.Nil(t, store.MarkRead(ctx, msg.ID, "lev"))

		snapshot, err := store.Snapshot(ctx)
		require.Nil(t, err)
		assert.ElementsMatch(t, []string{"cin", "lev"}, snapshot[0].ReadBy)
	})

	t.Run("absent id", func(t *testing.T) {
		store := NewMemoryHistoryStore(100)
		assert.Equal(t, ErrMessageNotFound, store.MarkRead(ctx, 404, "cin"))
	})
}

func TestMemorySearch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore(100)
	for _, m := range []MessageCreateInput{
		textInput("lev", "Hello there"),
		textInput("cin", "general kenobi"),
		textInput("lev", "bye"),
	} {
		_, err := store.Append(ctx, m)
		require.Nil(t, err)
	}

	t.Run("matches content case-insensitively", func(t *testing.T) {
		matches, err := store.Search(ctx, "HELLO")
		require.Nil(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "Hello there", matches[0].Content)
	})

	t.Run("matches username", func(t *testing.T) {
		matches, err := store.Search(ctx, "LeV")
		require.Nil(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("results keep store order", func(t *testing.T) {
		matches, err := store.Search(ctx, "e")
		require.Nil(t, err)
		require.Len(t, matches, 3)
		assert.Less(t, matches[0].ID, matches[1].ID)
		assert.Less(t, matches[1].ID, matches[2].ID)
	})

	t.Run("blank query matches nothing", func(t *testing.T) {
		matches, err := store.Search(ctx, "")
		require.Nil(t, err)
		assert.Empty(t, matches)

		matches, err = store.Search(ctx, "   ")
		require.Nil(t, err)
		assert.Empty(t, matches)
	})
}

func TestMemorySnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore(100)
	msg, err := store.Append(ctx, textInput("lev", "hi"))
	require.Nil(t, err)
	require.Nil(t, store.MarkRead(ctx, msg.ID, "cin"))

	snapshot, err := store.Snapshot(ctx)
	require.Nil(t, err)
	snapshot[0].Content = "mutated"
	snapshot[0].ReadBy[0] = "mutated"

	fresh, err := store.Snapshot(ctx)
	require.Nil(t, err)
	assert.Equal(t, "hi", fresh[0].Content)
	assert.Equal(t, []string{"cin"}, fresh[0].ReadBy)
}
