package ws

import (
	"encoding/json"
	"time"

	"trivia/internal/app"
	"trivia/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgStartGame    MessageType = "start_game"
	MsgSubmitAnswer MessageType = "submit_answer"
	MsgSelectOption MessageType = "select_option"
	MsgNextTurn     MessageType = "next_turn"
	MsgDismissError MessageType = "dismiss_error"
	MsgPing         MessageType = "ping"
)

// Server → Client message types. Game events are sent as domain.GameEvent.
const (
	MsgConnected MessageType = "connected"
	MsgError     MessageType = "error"
	MsgPong      MessageType = "pong"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload interface{}) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Client message payloads

// StartGamePayload is the payload for start_game message
type StartGamePayload struct {
	Players []string `json:"players"`
}

// SubmitAnswerPayload is the payload for submit_answer message
type SubmitAnswerPayload struct {
	Answer string `json:"answer"`
}

// SelectOptionPayload is the payload for select_option message
type SelectOptionPayload struct {
	Option string `json:"option"`
}

// Server message payloads

// ConnectedPayload is the payload for connected message
type ConnectedPayload struct {
	ClientID  string   `json:"clientId"`
	TableCode string   `json:"tableCode"`
	View      app.View `json:"view"`
}

// Error codes beyond the shared domain codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeTableNotFound  = "TABLE_NOT_FOUND"
)

func errorPayload(code, message string) *domain.ErrorPayload {
	return &domain.ErrorPayload{Code: code, Message: message}
}
