package huddle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/huddle-chat/huddle/core"
)

const (
	MessageEvent       = "message"
	EditMessageEvent   = "edit_message"
	DeleteMessageEvent = "delete_message"
	ReadMessageEvent   = "read_message"
	TypingEvent        = "typing"
	StopTypingEvent    = "stop_typing"
	OnlineEvent        = "online"
	OfflineEvent       = "offline"
	HistoryEvent       = "history"
	RosterEvent        = "roster"
	ErrorEvent         = "error"
)

// error codes carried by ErrorEvent payloads.
const (
	CodeNotFound         = "not_found"
	CodePermissionDenied = "permission_denied"
	CodeInvalidInput     = "invalid_input"
)

type MessageEventPayload struct {
	Kind       core.MessageKind `json:"kind"`
	Content    string           `json:"content"`
	Attachment *core.Attachment `json:"attachment,omitempty"`
}

type EditMessageEventPayload struct {
	ID       int64     `json:"id"`
	Content  string    `json:"content"`
	EditedAt time.Time `json:"edited_at"`
}

type DeleteMessageEventPayload struct {
	ID int64 `json:"id"`
}

type ReadMessageEventPayload struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type TypingEventPayload struct {
	Username string `json:"username"`
}

type PresenceEventPayload struct {
	Username string              `json:"username"`
	Status   core.PresenceStatus `json:"status"`
}

type RosterEventPayload struct {
	Online []string `json:"online"`
}

type ErrorEventPayload struct {
	Event string `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// MessageEventHandler appends the message to the history and broadcasts it to
// everyone, the sender included. Sending also clears the sender's typing
// indicator for everyone else.
func (app *App) MessageEventHandler(ctx context.Context, e *core.Event) error {
	var payload MessageEventPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal message event payload: %w", err)
	}

	input := core.MessageCreateInput{
		Kind:       payload.Kind,
		Content:    payload.Content,
		Attachment: payload.Attachment,
		Sender:     e.Dispatcher,
	}

	msg, err := app.history.Append(ctx, input)
	if err != nil {
		if errors.Is(err, core.ErrInvalidMessage) {
			return app.reportError(e, CodeInvalidInput, err)
		}
		return fmt.Errorf("Append: %w", err)
	}

	app.typing.Clear(e.Dispatcher)

	if err := app.eventRouter.Emit(MessageEvent, msg); err != nil {
		return err
	}
	return app.eventRouter.EmitExcept(StopTypingEvent,
		TypingEventPayload{Username: e.Dispatcher}, e.Dispatcher)
}

// EditMessageEventHandler edits a message owned by the dispatcher. The edit
// is broadcast only when it succeeded; failures are reported back to the
// dispatcher alone.
func (app *App) EditMessageEventHandler(ctx context.Context, e *core.Event) error {
	var payload EditMessageEventPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal edit event payload: %w", err)
	}

	msg, err := app.history.Edit(ctx, payload.ID, e.Dispatcher, payload.Content)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrMessageNotFound):
			return app.reportError(e, CodeNotFound, err)
		case errors.Is(err, core.ErrNotMessageAuthor):
			return app.reportError(e, CodePermissionDenied, err)
		}
		return fmt.Errorf("Edit: %w", err)
	}

	return app.eventRouter.Emit(EditMessageEvent, EditMessageEventPayload{
		ID:       msg.ID,
		Content:  msg.Content,
		EditedAt: msg.EditedAt,
	})
}

// DeleteMessageEventHandler deletes a message owned by the dispatcher, with
// the same broadcast-on-success rule as edits.
func (app *App) DeleteMessageEventHandler(ctx context.Context, e *core.Event) error {
	var payload DeleteMessageEventPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal delete event payload: %w", err)
	}

	if err := app.history.Delete(ctx, payload.ID, e.Dispatcher); err != nil {
		switch {
		case errors.Is(err, core.ErrMessageNotFound):
			return app.reportError(e, CodeNotFound, err)
		case errors.Is(err, core.ErrNotMessageAuthor):
			return app.reportError(e, CodePermissionDenied, err)
		}
		return fmt.Errorf("Delete: %w", err)
	}

	return app.eventRouter.Emit(DeleteMessageEvent, DeleteMessageEventPayload{ID: payload.ID})
}

// ReadMessageEventHandler records a read receipt and broadcasts it to
// everyone, the reader included. A receipt for an absent (already evicted or
// deleted) message is dropped silently.
func (app *App) ReadMessageEventHandler(ctx context.Context, e *core.Event) error {
	var payload ReadMessageEventPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal read event payload: %w", err)
	}

	if err := app.history.MarkRead(ctx, payload.ID, e.Dispatcher); err != nil {
		if errors.Is(err, core.ErrMessageNotFound) {
			return nil
		}
		return fmt.Errorf("MarkRead: %w", err)
	}

	return app.eventRouter.Emit(ReadMessageEvent, ReadMessageEventPayload{
		ID:       payload.ID,
		Username: e.Dispatcher,
	})
}

// TypingEventHandler refreshes the dispatcher's typing indicator for everyone
// but the dispatcher.
func (app *App) TypingEventHandler(ctx context.Context, e *core.Event) error {
	app.typing.Set(e.Dispatcher)
	return app.eventRouter.EmitExcept(TypingEvent,
		TypingEventPayload{Username: e.Dispatcher}, e.Dispatcher)
}

func (app *App) StopTypingEventHandler(ctx context.Context, e *core.Event) error {
	app.typing.Clear(e.Dispatcher)
	return app.eventRouter.EmitExcept(StopTypingEvent,
		TypingEventPayload{Username: e.Dispatcher}, e.Dispatcher)
}

// onTypingExpired broadcasts a stop-typing event for every username the
// background sweep expired.
func (app *App) onTypingExpired(expired []string) {
	for _, username := range expired {
		app.eventRouter.Emit(StopTypingEvent, TypingEventPayload{Username: username})
	}
}

// reportError surfaces a failed action back to the acting user instead of
// dropping it silently. Other users never see the failure.
func (app *App) reportError(e *core.Event, code string, err error) error {
	return app.eventRouter.EmitTo(ErrorEvent, ErrorEventPayload{
		Event: e.Type,
		Code:  code,
		Error: err.Error(),
	}, e.Dispatcher)
}
