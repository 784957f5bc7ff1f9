package huddle

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/huddle-chat/huddle/core"
	"github.com/stretchr/testify/require"
)

// delivery is one outbound event captured by the mock transport, together
// with the audience it was addressed to.
type delivery struct {
	event  *core.Event
	scope  string // "all", "users", "except", "conn"
	users  []string
	except string
	connID int
}

func (d delivery) decode(t *testing.T, target interface{}) {
	t.Helper()
	require.Nil(t, json.Unmarshal(d.event.Payload, target))
}

// MockTransport implements core.EventTransport by recording every delivery
// instead of writing to sockets.
type MockTransport struct {
	mu         sync.Mutex
	deliveries []delivery
	inbound    chan *core.Event
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		inbound: make(chan *core.Event, 16),
	}
}

func (m *MockTransport) Send(event *core.Event) {
	m.record(delivery{event: event, scope: "all"})
}

func (m *MockTransport) SendToUsers(event *core.Event, usernames ...string) {
	m.record(delivery{event: event, scope: "users", users: usernames})
}

func (m *MockTransport) SendExcept(event *core.Event, username string) {
	m.record(delivery{event: event, scope: "except", except: username})
}

func (m *MockTransport) SendToConn(event *core.Event, username string, connID int) {
	m.record(delivery{event: event, scope: "conn", users: []string{username}, connID: connID})
}

func (m *MockTransport) Receive() <-chan *core.Event {
	return m.inbound
}

func (m *MockTransport) record(d delivery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, d)
}

// ofType returns the captured deliveries of the given event type, in order.
func (m *MockTransport) ofType(eventType string) []delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []delivery
	for _, d := range m.deliveries {
		if d.event.Type == eventType {
			out = append(out, d)
		}
	}
	return out
}

func (m *MockTransport) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = nil
}
