package domain

import (
	"math/rand"
	"strings"
)

// Category is the subject a question is drawn from
type Category string

const (
	CategoryProphetBiography Category = "Prophetic Biography"
	CategoryProphetStories   Category = "Stories of the Prophets"
	CategoryCompanions       Category = "Stories of the Companions"
	CategoryQuran            Category = "The Holy Quran"
)

// Categories lists every category a question may be generated for
var Categories = []Category{
	CategoryProphetBiography,
	CategoryProphetStories,
	CategoryCompanions,
	CategoryQuran,
}

// RandomCategory picks a category using rng
func RandomCategory(rng *rand.Rand) Category {
	return Categories[rng.Intn(len(Categories))]
}

// OptionCount is the number of choices shown in the multiple-choice stage
const OptionCount = 4

// Question is a single trivia question. It is never mutated after creation.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Options       []string `json:"options"`
	Category      Category `json:"category"`
	Explanation   string   `json:"explanation,omitempty"`
}

// Validate checks the question is playable
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" || strings.TrimSpace(q.CorrectAnswer) == "" {
		return ErrInvalidQuestion
	}
	if len(q.Options) != OptionCount {
		return ErrInvalidQuestion
	}
	seen := make(map[string]struct{}, len(q.Options))
	correct := 0
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return ErrInvalidQuestion
		}
		if _, dup := seen[opt]; dup {
			return ErrInvalidQuestion
		}
		seen[opt] = struct{}{}
		if opt == q.CorrectAnswer {
			correct++
		}
	}
	if correct != 1 {
		return ErrInvalidQuestion
	}
	return nil
}

// ShuffleOptions returns a copy of q with its options permuted by rng
func (q Question) ShuffleOptions(rng *rand.Rand) Question {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	q.Options = options
	return q
}

// IsCorrect reports whether option is the correct answer
func (q Question) IsCorrect(option string) bool {
	return option == q.CorrectAnswer
}

// QuestionRequest describes the question a generator should produce
type QuestionRequest struct {
	Category Category
	UsedIDs  []string
}
