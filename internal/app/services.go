package app

import (
	"context"
	"errors"

	"trivia/internal/domain"
)

// QuestionSource produces new questions
type QuestionSource interface {
	Generate(ctx context.Context, req domain.QuestionRequest) (domain.Question, error)
}

// Grader judges free-text answers
type Grader interface {
	Grade(ctx context.Context, question, correctAnswer, answer string) (bool, error)
}

// Connectivity reports whether the network is believed reachable
type Connectivity interface {
	Online() bool
}

// Recorder stores finished games
type Recorder interface {
	RecordGame(ctx context.Context, summary domain.GameSummary) error
}

type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }

// classify converts a collaborator error into a kind-tagged domain error
func classify(op string, err error) error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return derr
	}
	if kind := domain.KindOf(err); kind != nil {
		return domain.NewError(op, kind, err)
	}
	return domain.NewError(op, domain.ErrService, err)
}
