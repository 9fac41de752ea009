package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"trivia/internal/domain"
)

const questionSystemPrompt = `You write questions for an Islamic knowledge quiz played by friends around one screen.
Respond with ONLY a JSON object (no markdown, no code fences) in this format:

{
  "id": "short-kebab-case-slug-of-the-question",
  "text": "The question?",
  "correctAnswer": "The correct answer",
  "options": ["The correct answer", "Wrong 1", "Wrong 2", "Wrong 3"],
  "explanation": "One or two sentences on why the answer is correct, or a related fact"
}

Rules:
- "options" has exactly 4 distinct entries and contains "correctAnswer" exactly once
- The three wrong options must be plausible
- The question must be clear, factually accurate and suitable for a family quiz`

// Generator writes new questions
type Generator struct {
	client *Client
}

// NewGenerator creates a generator on client
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Generate asks for a new question in req.Category, avoiding req.UsedIDs.
// The id is empty when the model did not supply one.
func (g *Generator) Generate(ctx context.Context, req domain.QuestionRequest) (domain.Question, error) {
	content, err := g.client.complete(ctx, questionSystemPrompt, questionPrompt(req), true)
	if err != nil {
		return domain.Question{}, fmt.Errorf("generate question: %w", err)
	}

	q, err := parseQuestion(content)
	if err != nil {
		return domain.Question{}, fmt.Errorf("generate question: %w", err)
	}
	q.Category = req.Category
	return q, nil
}

func questionPrompt(req domain.QuestionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a new question in the category %q.", req.Category)
	if len(req.UsedIDs) > 0 {
		fmt.Fprintf(&b, "\nDo not repeat any of these questions: %s.", strings.Join(req.UsedIDs, ", "))
	}
	return b.String()
}

func parseQuestion(content string) (domain.Question, error) {
	content = cleanJSONContent(content)
	if !gjson.Valid(content) {
		return domain.Question{}, fmt.Errorf("%w: reply is not valid JSON", domain.ErrInvalidQuestion)
	}

	doc := gjson.Parse(content)
	q := domain.Question{
		ID:            strings.TrimSpace(doc.Get("id").String()),
		Text:          strings.TrimSpace(doc.Get("text").String()),
		CorrectAnswer: strings.TrimSpace(doc.Get("correctAnswer").String()),
		Explanation:   strings.TrimSpace(doc.Get("explanation").String()),
	}
	for _, opt := range doc.Get("options").Array() {
		q.Options = append(q.Options, strings.TrimSpace(opt.String()))
	}

	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}
