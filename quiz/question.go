package quiz

// Question is one record of the static catalog. Questions are never mutated
// after the bank is loaded.
type Question struct {
	Text          string   `json:"text"`
	CorrectAnswer string   `json:"correctAnswer"`
	Options       []string `json:"options,omitempty"`
	CorrectIndex  *int     `json:"correctIndex,omitempty"`
	ImageURL      string   `json:"imageUrl,omitempty"`
}

// IsMultipleChoice reports whether the question is answered with buttons.
func (q Question) IsMultipleChoice() bool {
	return len(q.Options) > 0
}

// AnswerIndex returns the index of the correct option, or -1 for free-text
// questions and for options that do not contain the answer.
func (q Question) AnswerIndex(ev *Evaluator) int {
	if !q.IsMultipleChoice() {
		return -1
	}
	if q.CorrectIndex != nil {
		if *q.CorrectIndex < 0 || *q.CorrectIndex >= len(q.Options) {
			return -1
		}
		return *q.CorrectIndex
	}
	for i, opt := range q.Options {
		if ev.Matches(opt, q.CorrectAnswer) {
			return i
		}
	}
	return -1
}

func sameQuestion(a, b *Question) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Text == b.Text
}
