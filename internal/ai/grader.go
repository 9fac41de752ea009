package ai

import (
	"context"
	"fmt"
	"strings"
)

const graderSystemPrompt = `You judge answers in a spoken quiz. Reply with exactly one word: "correct" or "incorrect".
Accept minor misspellings and very close synonyms, including alternative spellings of Islamic names.`

// Grader judges free-text answers
type Grader struct {
	client *Client
}

// NewGrader creates a grader on client
func NewGrader(client *Client) *Grader {
	return &Grader{client: client}
}

// Grade reports whether answer is acceptable for question
func (g *Grader) Grade(ctx context.Context, question, correctAnswer, answer string) (bool, error) {
	prompt := fmt.Sprintf("Question: %q\nModel answer: %q\nPlayer answer: %q\nIs the player answer correct?",
		question, correctAnswer, answer)

	content, err := g.client.complete(ctx, graderSystemPrompt, prompt, false)
	if err != nil {
		return false, fmt.Errorf("grade answer: %w", err)
	}
	return parseVerdict(content)
}

func parseVerdict(content string) (bool, error) {
	fields := strings.Fields(strings.ToLower(content))
	if len(fields) == 0 {
		return false, fmt.Errorf("grade answer: empty verdict")
	}

	switch strings.Trim(fields[0], ".,!\"'`*") {
	case "correct", "yes", "true":
		return true, nil
	case "incorrect", "wrong", "no", "false":
		return false, nil
	}
	return false, fmt.Errorf("grade answer: unrecognized verdict %q", content)
}
