package core

import (
	"context"
	"errors"
	"time"
)

// MessageKind determines how the message content should be interpreted.
type MessageKind string

const (
	// TextMessage indicates that Content is a UTF-8 encoded string.
	TextMessage MessageKind = "text"
	// EmojiMessage indicates that Content is a single emoji rendered large.
	EmojiMessage MessageKind = "emoji"
	// AttachmentMessage indicates that the message carries a file; Content may
	// hold a caption or be empty, and Attachment must be set.
	AttachmentMessage MessageKind = "attachment"
	// GifMessage indicates that Content is the URL of a gif.
	GifMessage MessageKind = "gif"
)

// Attachment describes a stored blob, as returned by a BlobStore.
type Attachment struct {
	Filename     string `json:"filename" validate:"required"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size" validate:"required"`
	MIMEType     string `json:"mime_type" validate:"required"`
	URL          string `json:"url" validate:"required"`
}

// Message represents a chat message held by the history store.
// ID and SentAt are assigned by the store at insertion and are immutable.
// EditedAt is set only when Edited transitions false to true.
type Message struct {
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	Kind     MessageKind `json:"kind"`
	Content  string      `json:"content"`
	// Attachment is nil unless Kind is AttachmentMessage.
	Attachment *Attachment `json:"attachment,omitempty"`
	SentAt     time.Time   `json:"sent_at"`
	Edited     bool        `json:"edited"`
	EditedAt   time.Time   `json:"edited_at,omitempty"`
	// ReadBy holds the usernames that acknowledged the message. It only grows.
	ReadBy []string `json:"read_by"`
}

var (
	// ErrMessageNotFound is returned when a message id is absent from the
	// store, including ids of evicted or deleted messages.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotMessageAuthor is returned when edit or delete is attempted by
	// someone other than the original author.
	ErrNotMessageAuthor = errors.New("not the message author")
	// ErrInvalidMessage is returned when a message create input fails
	// validation.
	ErrInvalidMessage = errors.New("invalid message")
)

// MessageCreateInput represents the input for appending a message.
type MessageCreateInput struct {
	Kind       MessageKind `json:"kind" validate:"required,oneof=text emoji attachment gif"`
	Content    string      `json:"content"`
	Sender     string      `json:"sender" validate:"required"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Validate checks the input against the per-kind rules: text, emoji and gif
// messages require non-empty content, attachment messages require an
// attachment payload.
func (m *MessageCreateInput) Validate() error {
	if err := validate.Struct(m); err != nil {
		return ErrInvalidMessage
	}
	switch m.Kind {
	case AttachmentMessage:
		if m.Attachment == nil {
			return ErrInvalidMessage
		}
		if err := validate.Struct(m.Attachment); err != nil {
			return ErrInvalidMessage
		}
	default:
		if m.Content == "" {
			return ErrInvalidMessage
		}
	}
	return nil
}

// HistoryStore is a bounded, ordered store of chat messages. Implementations
// hold at most their configured limit; inserting beyond it evicts the oldest
// message first.
type HistoryStore interface {

	// Append validates the input, assigns an id and the insertion timestamp,
	// and stores the message. If the store exceeds its limit the oldest
	// messages are evicted. It returns the stored message.
	// If the input is invalid it returns ErrInvalidMessage.
	Append(ctx context.Context, input MessageCreateInput) (*Message, error)

	// Edit replaces the content of the message with the given id.
	// It returns ErrMessageNotFound if the id is absent and
	// ErrNotMessageAuthor if the requester is not the original author.
	// On success the message's Edited flag is set and EditedAt recorded.
	Edit(ctx context.Context, id int64, requester, content string) (*Message, error)

	// Delete removes the message with the given id. The lookup and ownership
	// rules are the same as Edit.
	Delete(ctx context.Context, id int64, requester string) error

	// MarkRead adds username to the message's read set. It is idempotent.
	// It returns ErrMessageNotFound if the id is absent.
	MarkRead(ctx context.Context, id int64, username string) error

	// Search returns the messages whose content or author username contains
	// the query, case-insensitively, in store order. A blank query matches
	// nothing.
	Search(ctx context.Context, query string) ([]Message, error)

	// Snapshot returns the full store contents in insertion order.
	Snapshot(ctx context.Context) ([]Message, error)
}
