package huddle

import (
	"encoding/json"
	"net/http"

	"github.com/huddle-chat/huddle/core"
)

type MessageHandler struct {
	history core.HistoryStore
}

func NewMessageHandler(history core.HistoryStore) *MessageHandler {
	return &MessageHandler{history: history}
}

// GetMessagesHandler returns the full history snapshot in insertion order.
// Clients use it as the initial state; live updates come over the websocket.
func (h *MessageHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) error {
	snapshot, err := h.history.Snapshot(r.Context())
	if err != nil {
		return err
	}
	if snapshot == nil {
		snapshot = []core.Message{}
	}
	return json.NewEncoder(w).Encode(snapshot)
}

// SearchMessagesHandler matches the query case-insensitively against message
// content and author. A blank query yields an empty result, not the whole
// store.
func (h *MessageHandler) SearchMessagesHandler(w http.ResponseWriter, r *http.Request) error {
	matches, err := h.history.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		return err
	}
	if matches == nil {
		matches = []core.Message{}
	}
	return json.NewEncoder(w).Encode(matches)
}
