package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLiteHistoryStore implements HistoryStore on SQLite. It carries the same
// bounded-retention contract as the in-memory store: after every insert the
// table is trimmed back to the newest limit rows.
type SQLiteHistoryStore struct {
	db    *sql.DB
	limit int
	now   func() time.Time
}

type SQLiteHistoryOption func(*SQLiteHistoryStore)

func WithSQLiteClock(now func() time.Time) SQLiteHistoryOption {
	return func(s *SQLiteHistoryStore) {
		s.now = now
	}
}

func NewSQLiteHistoryStore(db *sql.DB, limit int, opts ...SQLiteHistoryOption) *SQLiteHistoryStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s := &SQLiteHistoryStore{
		db:    db,
		limit: limit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLiteHistoryStore) Append(ctx context.Context, input MessageCreateInput) (*Message, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	sentAt := s.now()
	var att Attachment
	if input.Attachment != nil {
		att = *input.Attachment
	}
	query := `
		INSERT INTO messages (username, kind, content, attachment_filename, attachment_original_name,
			attachment_size, attachment_mime_type, attachment_url, sent_at, edited, edited_at)
		VALUES (@username, @kind, @content, @att_filename, @att_original_name,
			@att_size, @att_mime_type, @att_url, @sent_at, 0, NULL)`
	res, err := tx.ExecContext(ctx, query,
		sql.Named("username", input.Sender), sql.Named("kind", string(input.Kind)),
		sql.Named("content", input.Content),
		sql.Named("att_filename", att.Filename), sql.Named("att_original_name", att.OriginalName),
		sql.Named("att_size", att.Size), sql.Named("att_mime_type", att.MIMEType),
		sql.Named("att_url", att.URL),
		sql.Named("sent_at", sentAt))
	if err != nil {
		return nil, fmt.Errorf("ExecContext(insert message): %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("LastInsertId: %w", err)
	}

	// Evict the oldest rows beyond the retention limit, and their receipts.
	query = `DELETE FROM message_reads WHERE message_id NOT IN (
			SELECT id FROM messages ORDER BY id DESC LIMIT @limit)`
	if _, err := tx.ExecContext(ctx, query, sql.Named("limit", s.limit)); err != nil {
		return nil, fmt.Errorf("ExecContext(trim reads): %w", err)
	}
	query = `DELETE FROM messages WHERE id NOT IN (
			SELECT id FROM messages ORDER BY id DESC LIMIT @limit)`
	if _, err := tx.ExecContext(ctx, query, sql.Named("limit", s.limit)); err != nil {
		return nil, fmt.Errorf("ExecContext(trim messages): %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Commit: %w", err)
	}

	msg := &Message{
		ID:         id,
		Username:   input.Sender,
		Kind:       input.Kind,
		Content:    input.Content,
		Attachment: input.Attachment,
		SentAt:     sentAt,
	}
	return msg, nil
}

func (s *SQLiteHistoryStore) Edit(ctx context.Context, id int64, requester, content string) (*Message, error) {
	msg, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.Username != requester {
		return nil, ErrNotMessageAuthor
	}

	editedAt := s.now()
	query := `UPDATE messages SET content = @content, edited = 1, edited_at = @edited_at WHERE id = @id`
	_, err = s.db.ExecContext(ctx, query,
		sql.Named("content", content), sql.Named("edited_at", editedAt), sql.Named("id", id))
	if err != nil {
		return nil, fmt.Errorf("ExecContext(update message): %w", err)
	}

	msg.Content = content
	msg.Edited = true
	msg.EditedAt = editedAt
	return msg, nil
}

func (s *SQLiteHistoryStore) Delete(ctx context.Context, id int64, requester string) error {
	msg, err := s.getByID(ctx, id)
	if err != nil {
		return err
	}
	if msg.Username != requester {
		return ErrNotMessageAuthor
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM message_reads WHERE message_id = @id`, sql.Named("id", id)); err != nil {
		return fmt.Errorf("ExecContext(delete reads): %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE id = @id`, sql.Named("id", id)); err != nil {
		return fmt.Errorf("ExecContext(delete message): %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	return nil
}

func (s *SQLiteHistoryStore) MarkRead(ctx context.Context, id int64, username string) error {
	if _, err := s.getByID(ctx, id); err != nil {
		return err
	}

	query := `INSERT INTO message_reads (message_id, username) VALUES (@message_id, @username)
		ON CONFLICT DO NOTHING`
	_, err := s.db.ExecContext(ctx, query,
		sql.Named("message_id", id), sql.Named("username", username))
	if err != nil {
		return fmt.Errorf("ExecContext(insert read): %w", err)
	}
	return nil
}

func (s *SQLiteHistoryStore) Search(ctx context.Context, query string) ([]Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	where := `WHERE instr(lower(content), lower(@q)) > 0 OR instr(lower(username), lower(@q)) > 0`
	return s.list(ctx, where, sql.Named("q", query))
}

func (s *SQLiteHistoryStore) Snapshot(ctx context.Context) ([]Message, error) {
	return s.list(ctx, "")
}

func (s *SQLiteHistoryStore) getByID(ctx context.Context, id int64) (*Message, error) {
	msgs, err := s.list(ctx, "WHERE id = @id", sql.Named("id", id))
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrMessageNotFound
	}
	return &msgs[0], nil
}

func (s *SQLiteHistoryStore) list(ctx context.Context, where string, args ...any) ([]Message, error) {
	query := `
		SELECT id, username, kind, content, attachment_filename, attachment_original_name,
			attachment_size, attachment_mime_type, attachment_url, sent_at, edited, edited_at
		FROM messages ` + where + ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("QueryContext(messages): %w", err)
	}
	defer rows.Close()

	var messages []Message
	index := make(map[int64]int)
	for rows.Next() {
		var (
			msg      Message
			kind     string
			att      Attachment
			edited   int
			editedAt sql.NullTime
		)
		if err := rows.Scan(&msg.ID, &msg.Username, &kind, &msg.Content,
			&att.Filename, &att.OriginalName, &att.Size, &att.MIMEType, &att.URL,
			&msg.SentAt, &edited, &editedAt); err != nil {
			return nil, fmt.Errorf("rows.Scan(message): %w", err)
		}
		msg.Kind = MessageKind(kind)
		if msg.Kind == AttachmentMessage {
			msg.Attachment = &att
		}
		msg.Edited = edited != 0
		if editedAt.Valid {
			msg.EditedAt = editedAt.Time
		}
		index[msg.ID] = len(messages)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	if err := s.attachReads(ctx, messages, index); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *SQLiteHistoryStore) attachReads(ctx context.Context, messages []Message, index map[int64]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, username FROM message_reads ORDER BY message_id, username`)
	if err != nil {
		return fmt.Errorf("QueryContext(reads): %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       int64
			username string
		)
		if err := rows.Scan(&id, &username); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("rows.Scan(read): %w", err)
		}
		if i, ok := index[id]; ok {
			messages[i].ReadBy = append(messages[i].ReadBy, username)
		}
	}
	return rows.Err()
}
