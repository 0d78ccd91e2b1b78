package handler

import (
	"encoding/json"
	"net/http"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// CountEnvelope wraps unread-count responses.
type CountEnvelope struct {
	UnreadCount int64 `json:"unread_count"`
}

// ModifiedEnvelope wraps bulk update responses.
type ModifiedEnvelope struct {
	Message  string `json:"message"`
	Modified int64  `json:"modified"`
}

// AcceptedEnvelope acknowledges a queued dispatch.
type AcceptedEnvelope struct {
	Message string `json:"message"`
	EventID string `json:"event_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
