package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Event is the wire envelope for everything that travels over a connection,
// in either direction. Dispatcher is the authenticated username of the
// sending connection; it is set server-side and never trusted from the wire.
type Event struct {
	Dispatcher string          `json:"-"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Dispatcher: %s, Type: %s, Payload.Size: %d}", e.Dispatcher, e.Type, len(e.Payload))
}

func EncodeEvent(w io.Writer, e *Event) error {
	if err := json.NewEncoder(w).Encode(e); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return nil
}

func DecodeEvent(r io.Reader, e *Event) error {
	if err := json.NewDecoder(r).Decode(e); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return nil
}

// EventTransport abstracts the fan-out surface of the connection layer. Every
// delivery is fire-and-forget and independent: a failed or slow receiver
// never blocks the others.
type EventTransport interface {
	// Send delivers the event to every connection.
	Send(event *Event)
	// SendToUsers delivers the event to every connection of the given users.
	SendToUsers(event *Event, usernames ...string)
	// SendExcept delivers the event to every connection except those of the
	// given user.
	SendExcept(event *Event, username string)
	// SendToConn delivers the event to a single connection of a user.
	SendToConn(event *Event, username string, connID int)
	// Receive exposes the stream of inbound events.
	Receive() <-chan *Event
}

type EventHandler func(context.Context, *Event) error

// EventRouter dispatches inbound events to registered handlers and emits
// outbound events through the transport.
type EventRouter struct {
	listeners map[string]EventHandler
	ctx       context.Context
	transport EventTransport
	logger    *slog.Logger
}

func NewEventRouter(ctx context.Context, logger *slog.Logger, transport EventTransport) *EventRouter {
	return &EventRouter{
		listeners: make(map[string]EventHandler),
		ctx:       ctx,
		transport: transport,
		logger:    logger,
	}
}

// Listen consumes inbound events until the router's context is cancelled.
// Handler errors are logged, never fatal.
func (em *EventRouter) Listen(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-em.ctx.Done():
			return
		case e := <-em.transport.Receive():
			em.logger.Debug(fmt.Sprintf("received: %v", e))
			handler, ok := em.listeners[e.Type]
			if !ok {
				em.logger.Error(fmt.Sprintf("no handler for %q event", e.Type))
				continue
			}
			if err := handler(em.ctx, e); err != nil {
				em.logger.Error(fmt.Sprintf("%s handler: %s", e.Type, err))
			}
		}
	}
}

func (em *EventRouter) On(eventType string, handler EventHandler) {
	em.listeners[eventType] = handler
}

// Emit broadcasts an event to every connection.
func (em *EventRouter) Emit(t string, payload interface{}) error {
	e, err := newEvent(t, payload)
	if err != nil {
		return err
	}
	em.transport.Send(e)
	return nil
}

// EmitTo sends an event to every connection of the given users.
func (em *EventRouter) EmitTo(t string, payload interface{}, usernames ...string) error {
	e, err := newEvent(t, payload)
	if err != nil {
		return err
	}
	em.transport.SendToUsers(e, usernames...)
	return nil
}

// EmitExcept broadcasts an event to everyone but the given user.
func (em *EventRouter) EmitExcept(t string, payload interface{}, username string) error {
	e, err := newEvent(t, payload)
	if err != nil {
		return err
	}
	em.transport.SendExcept(e, username)
	return nil
}

// EmitToConn sends an event to a single connection of a user.
func (em *EventRouter) EmitToConn(t string, payload interface{}, username string, connID int) error {
	e, err := newEvent(t, payload)
	if err != nil {
		return err
	}
	em.transport.SendToConn(e, username, connID)
	return nil
}

func newEvent(t string, payload interface{}) (*Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return &Event{Type: t, Payload: b}, nil
}
