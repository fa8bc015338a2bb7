package quiz

import (
	"sort"
	"sync"
)

// State is the derived lifecycle state of a session.
type State string

const (
	StateInactive      State = "inactive"
	StateActiveWaiting State = "active_waiting"
	StateActivePosted  State = "active_posted"
)

// Session is the quiz state of one community. Exported fields are the
// persisted snapshot; unexported fields are process-local and reset on load.
type Session struct {
	Active          bool           `json:"active"`
	CurrentQuestion *Question      `json:"currentQuestion"`
	LastQuestion    *Question      `json:"lastQuestion"`
	AnsweredUsers   []string       `json:"answeredUsers"`
	Scores          map[string]int `json:"scores"`
	ChannelID       string         `json:"channelId"`
	NeedsRestart    bool           `json:"needsRestart,omitempty"`
	Round           int            `json:"round"`

	// gen changes on every transition that invalidates pending timer
	// callbacks; a callback carrying an older value is a no-op.
	gen       uint64
	remaining int
	messageID string
	timers    timers
	// edits serializes edits of the posted question message.
	edits sync.Mutex
}

// NewSession returns an inactive session with no channel.
func NewSession() *Session {
	return &Session{
		Scores: make(map[string]int),
	}
}

// State derives the state machine position from the fields.
func (s *Session) State() State {
	switch {
	case !s.Active:
		return StateInactive
	case s.CurrentQuestion != nil:
		return StateActivePosted
	default:
		return StateActiveWaiting
	}
}

// Activate moves Inactive to Active-Waiting.
func (s *Session) Activate() error {
	if s.Active {
		return ErrAlreadyActive
	}
	s.Active = true
	s.NeedsRestart = false
	s.gen++
	return nil
}

// Deactivate moves any state to Inactive and drops the live question.
func (s *Session) Deactivate() error {
	if !s.Active {
		return ErrAlreadyInactive
	}
	s.Active = false
	s.CurrentQuestion = nil
	s.AnsweredUsers = nil
	s.remaining = 0
	s.gen++
	return nil
}

// beginRound makes q the live question and clears the answered set in the
// same step.
func (s *Session) beginRound(q Question, seconds int) {
	current, last := q, q
	s.CurrentQuestion = &current
	s.LastQuestion = &last
	s.AnsweredUsers = []string{}
	s.Round++
	s.remaining = seconds
	s.messageID = ""
	s.gen++
}

// endRound clears the live question. The boolean is false when there was
// none, so a round is only ever closed once.
func (s *Session) endRound() (Question, bool) {
	if s.CurrentQuestion == nil {
		return Question{}, false
	}
	q := *s.CurrentQuestion
	s.CurrentQuestion = nil
	s.AnsweredUsers = nil
	s.remaining = 0
	s.gen++
	return q, true
}

// HasAnswered reports whether userID already answered the live question.
func (s *Session) HasAnswered(userID string) bool {
	for _, id := range s.AnsweredUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *Session) markAnswered(userID string) {
	if !s.HasAnswered(userID) {
		s.AnsweredUsers = append(s.AnsweredUsers, userID)
	}
}

func (s *Session) credit(userID string) int {
	if s.Scores == nil {
		s.Scores = make(map[string]int)
	}
	s.Scores[userID]++
	return s.Scores[userID]
}

// ResetScores clears the score table.
func (s *Session) ResetScores() {
	s.Scores = make(map[string]int)
}

// Remaining is the number of countdown seconds left on the live question.
func (s *Session) Remaining() int {
	return s.remaining
}

// ScoreEntry is one leaderboard line.
type ScoreEntry struct {
	UserID string
	Score  int
	Rank   int
}

// Leaderboard returns the top n scores, highest first, ties by user id.
func (s *Session) Leaderboard(n int) []ScoreEntry {
	entries := make([]ScoreEntry, 0, len(s.Scores))
	for id, score := range s.Scores {
		entries = append(entries, ScoreEntry{UserID: id, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// restore turns a freshly decoded snapshot into a valid inactive session.
// A session saved while active cannot resume its timers, so it is flagged
// for a manual restart instead.
func (s *Session) restore() bool {
	flagged := false
	if s.Active {
		s.Active = false
		s.NeedsRestart = true
		flagged = true
	}
	s.CurrentQuestion = nil
	s.AnsweredUsers = nil
	if s.Scores == nil {
		s.Scores = make(map[string]int)
	}
	for id, score := range s.Scores {
		if score < 0 {
			s.Scores[id] = 0
		}
	}
	return flagged
}

func (s *Session) clone() *Session {
	c := &Session{
		Active:       s.Active,
		ChannelID:    s.ChannelID,
		NeedsRestart: s.NeedsRestart,
		Round:        s.Round,
		Scores:       make(map[string]int, len(s.Scores)),
	}
	if s.CurrentQuestion != nil {
		q := *s.CurrentQuestion
		c.CurrentQuestion = &q
	}
	if s.LastQuestion != nil {
		q := *s.LastQuestion
		c.LastQuestion = &q
	}
	if s.AnsweredUsers != nil {
		c.AnsweredUsers = append([]string{}, s.AnsweredUsers...)
	}
	for id, score := range s.Scores {
		c.Scores[id] = score
	}
	return c
}
