package core

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultHistoryLimit is the maximum number of messages retained by a history
// store unless configured otherwise.
const DefaultHistoryLimit = 100

// MemoryHistoryStore is an in-memory HistoryStore. Messages live only for the
// lifetime of the process. All operations are guarded by a single mutex; the
// working set is tiny so there is no need for anything finer.
type MemoryHistoryStore struct {
	messages []Message
	limit    int
	nextID   int64
	now      func() time.Time
	mu       sync.Mutex
}

type MemoryHistoryOption func(*MemoryHistoryStore)

// WithClock overrides the store's clock. Used by tests to control timestamps.
func WithClock(now func() time.Time) MemoryHistoryOption {
	return func(s *MemoryHistoryStore) {
		s.now = now
	}
}

func NewMemoryHistoryStore(limit int, opts ...MemoryHistoryOption) *MemoryHistoryStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s := &MemoryHistoryStore{
		limit:  limit,
		nextID: 1,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryHistoryStore) Append(_ context.Context, input MessageCreateInput) (*Message, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := Message{
		ID:         s.nextID,
		Username:   input.Sender,
		Kind:       input.Kind,
		Content:    input.Content,
		Attachment: input.Attachment,
		SentAt:     s.now(),
	}
	s.nextID++

	s.messages = append(s.messages, msg)
	if over := len(s.messages) - s.limit; over > 0 {
		s.messages = slices.Delete(s.messages, 0, over)
	}

	stored := msg
	return &stored, nil
}

func (s *MemoryHistoryStore) Edit(_ context.Context, id int64, requester, content string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx == -1 {
		return nil, ErrMessageNotFound
	}
	if s.messages[idx].Username != requester {
		return nil, ErrNotMessageAuthor
	}

	s.messages[idx].Content = content
	if !s.messages[idx].Edited {
		s.messages[idx].Edited = true
	}
	s.messages[idx].EditedAt = s.now()

	edited := s.messages[idx]
	edited.ReadBy = slices.Clone(edited.ReadBy)
	return &edited, nil
}

func (s *MemoryHistoryStore) Delete(_ context.Context, id int64, requester string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx == -1 {
		return ErrMessageNotFound
	}
	if s.messages[idx].Username != requester {
		return ErrNotMessageAuthor
	}

	s.messages = slices.Delete(s.messages, idx, idx+1)
	return nil
}

func (s *MemoryHistoryStore) MarkRead(_ context.Context, id int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx == -1 {
		return ErrMessageNotFound
	}
	if slices.Contains(s.messages[idx].ReadBy, username) {
		return nil
	}
	s.messages[idx].ReadBy = append(s.messages[idx].ReadBy, username)
	return nil
}

func (s *MemoryHistoryStore) Search(_ context.Context, query string) ([]Message, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []Message
	for _, msg := range s.messages {
		if strings.Contains(strings.ToLower(msg.Content), query) ||
			strings.Contains(strings.ToLower(msg.Username), query) {
			msg.ReadBy = slices.Clone(msg.ReadBy)
			matches = append(matches, msg)
		}
	}
	return matches, nil
}

func (s *MemoryHistoryStore) Snapshot(_ context.Context) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]Message, len(s.messages))
	for i, msg := range s.messages {
		msg.ReadBy = slices.Clone(msg.ReadBy)
		snapshot[i] = msg
	}
	return snapshot, nil
}

// indexOf must be called with the mutex held.
func (s *MemoryHistoryStore) indexOf(id int64) int {
	return slices.IndexFunc(s.messages, func(m Message) bool {
		return m.ID == id
	})
}
