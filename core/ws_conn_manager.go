package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnManager owns the live connections, keyed by username. It implements
// EventTransport: outbound events are fanned out here, inbound events from
// every connection funnel into a single receive stream.
//
// Deliveries are independent: a connection whose write buffer is full has the
// event dropped rather than blocking the fan-out to everyone else.
type ConnManager struct {
	conns   map[string][]*Conn
	mu      sync.RWMutex
	connWg  *sync.WaitGroup
	context context.Context
	logger  *slog.Logger

	onUserConnected    func(context.Context, string)
	onUserDisconnected func(context.Context, string)

	onConnectionOpened func(context.Context, string, int)
	onConnectionClosed func(context.Context, string, int)

	receivedEvent chan *Event

	upgrader        websocket.Upgrader
	ReadStreamSize  int
	WriteStreamSize int
}

var defaultUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type ManagerOption func(*ConnManager)

func WithCheckOrigin(f func(r *http.Request) bool) ManagerOption {
	return func(m *ConnManager) {
		m.upgrader.CheckOrigin = f
	}
}

func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *ConnManager) {
		m.logger = l
	}
}

func NewConnManager(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger, opts ...ManagerOption) *ConnManager {
	m := &ConnManager{
		connWg:             wg,
		conns:              make(map[string][]*Conn),
		logger:             logger,
		context:            ctx,
		upgrader:           defaultUpgrader,
		ReadStreamSize:     100,
		WriteStreamSize:    100,
		onUserConnected:    func(context.Context, string) {},
		onUserDisconnected: func(context.Context, string) {},
		onConnectionOpened: func(context.Context, string, int) {},
		onConnectionClosed: func(context.Context, string, int) {},
	}

	for _, opt := range opts {
		opt(m)
	}

	m.receivedEvent = make(chan *Event, m.ReadStreamSize)

	return m
}

func (m *ConnManager) Receive() <-chan *Event {
	return m.receivedEvent
}

// OnUserConnected registers a callback invoked when a user's first
// connection opens.
func (m *ConnManager) OnUserConnected(f func(context.Context, string)) {
	m.onUserConnected = f
}

// OnUserDisconnected registers a callback invoked when a user's last
// connection closes.
func (m *ConnManager) OnUserDisconnected(f func(context.Context, string)) {
	m.onUserDisconnected = f
}

func (m *ConnManager) OnConnectionOpened(f func(context.Context, string, int)) {
	m.onConnectionOpened = f
}

func (m *ConnManager) OnConnectionClosed(f func(context.Context, string, int)) {
	m.onConnectionClosed = f
}

func (m *ConnManager) IsUserConnected(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.conns[username]
	return ok
}

// Connect upgrades the request to a websocket connection owned by username
// and starts its read and write pumps.
func (m *ConnManager) Connect(username string, w http.ResponseWriter, r *http.Request) error {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	m.mu.Lock()
	conns := m.conns[username]
	id := 1
	if n := len(conns); n > 0 {
		id = conns[n-1].id + 1
	}
	wsConn := &Conn{
		username:    username,
		id:          id,
		conn:        conn,
		context:     m.context,
		writeStream: make(chan *Event, m.WriteStreamSize),
		readStream:  m.receivedEvent,
		ticker:      time.NewTicker(pingPeriod),
		logger:      m.logger.With(slog.String("connection", fmt.Sprintf("%s:%d", username, id))),
		notifyDisconnect: func() {
			m.disconnect(username, id)
		},
	}
	m.conns[username] = append(conns, wsConn)
	m.mu.Unlock()

	m.connWg.Add(1)
	go func() {
		defer m.connWg.Done()
		wsConn.readLoop()
	}()
	m.connWg.Add(1)
	go func() {
		defer m.connWg.Done()
		wsConn.writeLoop()
	}()

	if id == 1 {
		m.onUserConnected(m.context, username)
	}
	m.onConnectionOpened(m.context, username, id)

	return nil
}

func (m *ConnManager) disconnect(username string, ids ...int) {
	m.mu.Lock()
	conns, ok := m.conns[username]
	if !ok {
		m.mu.Unlock()
		return
	}

	closed := make([]int, 0, len(ids))
	userDisconnected := false

	if len(ids) == 0 {
		for _, c := range conns {
			c.close()
			closed = append(closed, c.id)
		}
		delete(m.conns, username)
		userDisconnected = true
	} else {
		// remove from the end to avoid index shifting
		for i := len(conns) - 1; i >= 0; i-- {
			if slices.Contains(ids, conns[i].id) {
				conns[i].close()
				closed = append(closed, conns[i].id)
				conns = slices.Delete(conns, i, i+1)
			}
		}
		if len(conns) == 0 {
			delete(m.conns, username)
			userDisconnected = true
		} else {
			m.conns[username] = conns
		}
	}
	m.mu.Unlock()

	for _, id := range closed {
		m.onConnectionClosed(m.context, username, id)
	}
	if userDisconnected {
		m.onUserDisconnected(m.context, username)
	}
}

// DisconnectAll closes every connection. Called on shutdown.
func (m *ConnManager) DisconnectAll() {
	m.mu.RLock()
	usernames := make([]string, 0, len(m.conns))
	for username := range m.conns {
		usernames = append(usernames, username)
	}
	m.mu.RUnlock()
	for _, username := range usernames {
		m.disconnect(username)
	}
}

func (m *ConnManager) Send(e *Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conns := range m.conns {
		for _, conn := range conns {
			m.trySend(conn, e)
		}
	}
}

func (m *ConnManager) SendToUsers(e *Event, usernames ...string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range usernames {
		for _, conn := range m.conns[u] {
			m.trySend(conn, e)
		}
	}
}

func (m *ConnManager) SendExcept(e *Event, username string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for u, conns := range m.conns {
		if u == username {
			continue
		}
		for _, conn := range conns {
			m.trySend(conn, e)
		}
	}
}

func (m *ConnManager) SendToConn(e *Event, username string, connID int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.conns[username] {
		if conn.id == connID {
			m.trySend(conn, e)
		}
	}
}

func (m *ConnManager) trySend(c *Conn, e *Event) {
	select {
	case c.writeStream <- e:
	default:
		m.logger.Debug(fmt.Sprintf("dropping %s event for %s:%d: write stream full", e.Type, c.username, c.id))
	}
}
