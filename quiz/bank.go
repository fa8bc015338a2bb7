package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"
)

// Bank is the immutable, ordered question catalog.
type Bank struct {
	questions []Question
	rng       *rand.Rand
}

// NewBank builds a bank from already-parsed questions. A nil rng uses a
// time-seeded source.
func NewBank(questions []Question, rng *rand.Rand) (*Bank, error) {
	if len(questions) == 0 {
		return nil, errors.New("question bank is empty")
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	qs := make([]Question, len(questions))
	copy(qs, questions)
	return &Bank{questions: qs, rng: rng}, nil
}

// LoadBank reads and validates the JSON catalog at path. Any error here is
// meant to stop the process.
func LoadBank(path string, ev *Evaluator) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question catalog: %w", err)
	}

	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse question catalog %s: %w", path, err)
	}

	for i, q := range questions {
		if err := validateQuestion(q, ev); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
	}

	return NewBank(questions, nil)
}

func validateQuestion(q Question, ev *Evaluator) error {
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("missing text")
	}
	if strings.TrimSpace(q.CorrectAnswer) == "" {
		return errors.New("missing correctAnswer")
	}
	if q.CorrectIndex != nil && !q.IsMultipleChoice() {
		return errors.New("correctIndex set without options")
	}
	if q.IsMultipleChoice() && q.AnswerIndex(ev) < 0 {
		return errors.New("options do not contain the correct answer")
	}
	return nil
}

// Len returns the number of questions.
func (b *Bank) Len() int {
	return len(b.questions)
}

// Pick selects a question uniformly at random, retrying up to twice the bank
// size to avoid repeating last. When the retries run out the repeat is
// accepted.
func (b *Bank) Pick(last *Question) Question {
	maxAttempts := len(b.questions) * 2
	var q Question
	for attempts := 0; attempts < maxAttempts; attempts++ {
		q = b.questions[b.rng.IntN(len(b.questions))]
		if !sameQuestion(&q, last) {
			break
		}
	}
	return q
}
