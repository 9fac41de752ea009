package domain

import (
	"errors"
	"time"
)

// EventType represents the type of game event
type EventType string

const (
	EventStateChanged EventType = "STATE_CHANGED"
	EventCountdown    EventType = "COUNTDOWN"
	EventError        EventType = "ERROR"
	EventGameEnded    EventType = "GAME_ENDED"
)

// GameEvent represents an event that occurred in the game
type GameEvent struct {
	Type      EventType   `json:"type"`
	GameID    string      `json:"gameId"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new game event
func NewEvent(eventType EventType, gameID string, payload interface{}) *GameEvent {
	return &GameEvent{
		Type:      eventType,
		GameID:    gameID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Payload types for different events

// CountdownPayload is sent every second while a timed stage runs
type CountdownPayload struct {
	Stage            Stage `json:"stage"`
	RemainingSeconds int   `json:"remainingSeconds"`
}

// ErrorPayload is sent when an operation fails
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GameEndedPayload is sent once when the game finishes
type GameEndedPayload struct {
	Ranking []Player `json:"ranking"`
	Winners []Player `json:"winners"`
}

// Error codes shared by the engine and transports
const (
	CodeOffline       = "OFFLINE"
	CodeCredential    = "CREDENTIAL"
	CodeService       = "SERVICE"
	CodeInvalidAction = "INVALID_ACTION"
	CodeInternal      = "INTERNAL_ERROR"
)

var invalidActions = []error{
	ErrNotEnoughPlayers, ErrGameStarted, ErrGameFinished, ErrInvalidStage, ErrNoQuestion,
	ErrEmptyName, ErrRosterFull, ErrPlayerNotFound, ErrDuplicatePlayer,
}

// ErrorCode maps an error to its wire code
func ErrorCode(err error) string {
	switch KindOf(err) {
	case ErrOffline:
		return CodeOffline
	case ErrCredential:
		return CodeCredential
	case ErrService:
		return CodeService
	}
	for _, target := range invalidActions {
		if errors.Is(err, target) {
			return CodeInvalidAction
		}
	}
	return CodeInternal
}

// NewErrorPayload builds the payload for err
func NewErrorPayload(err error) *ErrorPayload {
	return &ErrorPayload{
		Code:    ErrorCode(err),
		Message: err.Error(),
	}
}
