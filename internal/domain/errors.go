package domain

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the engine for external calls
var (
	ErrOffline    = errors.New("offline")
	ErrCredential = errors.New("missing or invalid api credential")
	ErrService    = errors.New("service failure")
)

// Precondition errors
var (
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrGameStarted      = errors.New("game already started")
	ErrGameFinished     = errors.New("game is finished")
	ErrInvalidStage     = errors.New("invalid action for current stage")
	ErrNoQuestion       = errors.New("no active question")
	ErrEmptyName        = errors.New("player name cannot be empty")
	ErrRosterFull       = errors.New("roster is full")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrDuplicatePlayer  = errors.New("duplicate player id")
	ErrInvalidQuestion  = errors.New("invalid question")
	ErrTableNotFound    = errors.New("table not found")
)

// Error is a failed external call, tagged with one of the failure kinds.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError tags err with kind for operation op.
func NewError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the failure kind carried by err, or nil.
func KindOf(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrOffline):
		return ErrOffline
	case errors.Is(err, ErrCredential):
		return ErrCredential
	case errors.Is(err, ErrService):
		return ErrService
	}
	return nil
}
