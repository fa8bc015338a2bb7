package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/airylvat/anime-quiz-bot/logger"
)

// Round is the read-only view of a posted question handed to the Announcer.
type Round struct {
	Number    int
	Question  Question
	Remaining int
	Duration  int
}

// Announcer is the outbound transport. Implementations format and send; they
// never touch session state.
type Announcer interface {
	PostQuestion(ctx context.Context, channelID string, round Round) (messageID string, err error)
	UpdateCountdown(ctx context.Context, channelID, messageID string, round Round) error
	RevealAnswer(ctx context.Context, channelID, messageID string, round Round) error
}

// AnswerResult is the outcome of an accepted submission.
type AnswerResult struct {
	Correct  bool
	Score    int
	Round    int
	Question Question
}

// Status is the introspection view used by the admin test command.
type Status struct {
	State        State
	NeedsRestart bool
	ChannelID    string
	Round        int
	Question     *Question
	Remaining    int
	Players      int
	BankSize     int
}

// Options configures round timing.
type Options struct {
	QuestionDuration int // countdown ticks per question
	Tick             time.Duration
	Cooldown         time.Duration
	Clock            Clock
}

// Manager runs the quiz of every community. A single mutex serializes all
// session mutations and snapshot writes; transport calls are made without
// it and their results are re-validated against the session generation.
type Manager struct {
	mu        sync.Mutex
	store     *Store
	bank      *Bank
	eval      *Evaluator
	sched     *Scheduler
	announcer Announcer
	duration  int
	closed    bool
}

// NewManager wires the quiz components together.
func NewManager(store *Store, bank *Bank, eval *Evaluator, announcer Announcer, opts Options) *Manager {
	if opts.QuestionDuration <= 0 {
		opts.QuestionDuration = 10
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	return &Manager{
		store:     store,
		bank:      bank,
		eval:      eval,
		sched:     NewScheduler(opts.Clock, opts.Tick, opts.Cooldown),
		announcer: announcer,
		duration:  opts.QuestionDuration,
	}
}

// Setup binds the quiz channel of a community.
func (m *Manager) Setup(communityID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrShuttingDown
	}

	sess := m.store.GetOrCreate(communityID)
	sess.ChannelID = channelID
	m.store.Save()
	logger.Info("Quiz channel configured", "community", communityID, "channel", channelID)
	return nil
}

// Start activates the quiz and posts the first question immediately.
func (m *Manager) Start(ctx context.Context, communityID string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	sess := m.store.GetOrCreate(communityID)
	if sess.ChannelID == "" {
		m.mu.Unlock()
		return ErrNoChannel
	}
	if err := sess.Activate(); err != nil {
		m.mu.Unlock()
		return err
	}
	gen := sess.gen
	m.store.Save()
	m.mu.Unlock()

	logger.Info("Quiz started", "community", communityID)
	return m.postQuestion(ctx, communityID, sess, gen)
}

// Stop deactivates the quiz and cancels its timers.
func (m *Manager) Stop(communityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrShuttingDown
	}

	sess := m.store.GetOrCreate(communityID)
	if err := sess.Deactivate(); err != nil {
		return err
	}
	m.sched.cancel(sess)
	m.store.Save()
	logger.Info("Quiz stopped", "community", communityID)
	return nil
}

// Next ends the live question, if any, revealing its answer, and posts the
// next question without waiting for the cooldown.
func (m *Manager) Next(ctx context.Context, communityID string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	sess := m.store.GetOrCreate(communityID)
	if !sess.Active {
		m.mu.Unlock()
		return ErrNotActive
	}

	var (
		revealed  bool
		round     Round
		channelID = sess.ChannelID
		messageID = sess.messageID
	)
	if sess.CurrentQuestion != nil {
		round = m.roundLocked(sess)
		round.Remaining = 0
		_, revealed = sess.endRound()
	}
	m.sched.cancel(sess)
	gen := sess.gen
	m.store.Save()
	m.mu.Unlock()

	// Without a message id the question is still being posted; finishPost
	// closes it once it lands.
	if revealed && messageID != "" {
		m.reveal(ctx, communityID, sess, channelID, messageID, round)
	}
	return m.postQuestion(ctx, communityID, sess, gen)
}

// SubmitAnswer evaluates a free-text message from the quiz channel. A wrong
// answer is not an error and leaves the session unchanged.
func (m *Manager) SubmitAnswer(ctx context.Context, communityID, channelID, userID, text string) (AnswerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.answerableLocked(communityID, channelID)
	if err != nil {
		return AnswerResult{}, err
	}
	if sess.HasAnswered(userID) {
		return AnswerResult{}, ErrDuplicateAnswer
	}

	q := *sess.CurrentQuestion
	if !m.eval.Matches(text, q.CorrectAnswer) {
		return AnswerResult{Round: sess.Round, Question: q}, nil
	}
	return m.creditLocked(communityID, sess, userID), nil
}

// SubmitChoice evaluates a button press. Every press counts as the user's
// answer to that question.
func (m *Manager) SubmitChoice(ctx context.Context, communityID, channelID, userID string, round, index int) (AnswerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.answerableLocked(communityID, channelID)
	if errors.Is(err, ErrNoActiveQuestion) {
		return AnswerResult{}, ErrStaleRound
	}
	if err != nil {
		return AnswerResult{}, err
	}
	if round != sess.Round {
		return AnswerResult{}, ErrStaleRound
	}

	q := *sess.CurrentQuestion
	if !q.IsMultipleChoice() {
		return AnswerResult{}, ErrNotMultipleChoice
	}
	if index < 0 || index >= len(q.Options) {
		return AnswerResult{}, ErrInvalidChoice
	}
	if sess.HasAnswered(userID) {
		return AnswerResult{}, ErrDuplicateAnswer
	}

	if !m.eval.MatchesChoice(q, index) {
		sess.markAnswered(userID)
		m.store.Save()
		return AnswerResult{Round: sess.Round, Question: q}, nil
	}
	return m.creditLocked(communityID, sess, userID), nil
}

// ResetScores clears the score table of a community.
func (m *Manager) ResetScores(communityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrShuttingDown
	}

	m.store.GetOrCreate(communityID).ResetScores()
	m.store.Save()
	logger.Info("Scores reset", "community", communityID)
	return nil
}

// Leaderboard returns the top n scores of a community.
func (m *Manager) Leaderboard(communityID string, n int) []ScoreEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.store.Get(communityID)
	if !ok {
		return nil
	}
	return sess.Leaderboard(n)
}

// Status returns a snapshot of the session for presentation.
func (m *Manager) Status(communityID string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.store.GetOrCreate(communityID)
	st := Status{
		State:        sess.State(),
		NeedsRestart: sess.NeedsRestart,
		ChannelID:    sess.ChannelID,
		Round:        sess.Round,
		Remaining:    sess.remaining,
		Players:      len(sess.Scores),
		BankSize:     m.bank.Len(),
	}
	if sess.CurrentQuestion != nil {
		q := *sess.CurrentQuestion
		st.Question = &q
	}
	return st
}

// Session returns a detached copy of the persisted fields of a session.
func (m *Manager) Session(communityID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.store.Get(communityID)
	if !ok {
		return nil, false
	}
	return sess.clone(), true
}

// Prune removes the sessions of communities the gateway no longer reports
// and cancels their timers.
func (m *Manager) Prune(activeCommunityIDs []string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0
	}

	removed := m.store.Prune(activeCommunityIDs)
	for _, sess := range removed {
		m.sched.cancel(sess)
		sess.gen++
	}
	m.store.Save()
	if len(removed) > 0 {
		logger.Info("Pruned sessions of departed communities", "count", len(removed))
	}
	return len(removed)
}

// Shutdown cancels every timer and writes the final snapshot. Sessions keep
// their active flag so they are reported for restart on the next load.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	for _, id := range m.store.IDs() {
		sess, _ := m.store.Get(id)
		m.sched.cancel(sess)
		sess.gen++
	}
	return m.store.Save()
}

func (m *Manager) answerableLocked(communityID, channelID string) (*Session, error) {
	if m.closed {
		return nil, ErrShuttingDown
	}
	sess := m.store.GetOrCreate(communityID)
	if sess.ChannelID == "" {
		return nil, ErrNoChannel
	}
	if channelID != sess.ChannelID {
		return nil, ErrWrongChannel
	}
	if sess.CurrentQuestion == nil {
		return nil, ErrNoActiveQuestion
	}
	return sess, nil
}

// creditLocked scores a correct answer and closes the round.
func (m *Manager) creditLocked(communityID string, sess *Session, userID string) AnswerResult {
	res := AnswerResult{
		Correct:  true,
		Round:    sess.Round,
		Question: *sess.CurrentQuestion,
	}
	sess.markAnswered(userID)
	res.Score = sess.credit(userID)
	sess.endRound()
	m.sched.cancel(sess)
	if sess.Active {
		m.scheduleCooldownLocked(communityID, sess)
	}
	m.store.Save()
	logger.Info("Correct answer", "community", communityID, "user", userID, "round", res.Round)
	return res
}

// current reports whether sess is still the registered session of the
// community and gen is still its generation.
func (m *Manager) current(communityID string, sess *Session, gen uint64) bool {
	if m.closed {
		return false
	}
	cur, ok := m.store.Get(communityID)
	return ok && cur == sess && sess.gen == gen
}

// postQuestion opens a round and posts it. The post error is returned only
// when it stopped the run that made the post.
func (m *Manager) postQuestion(ctx context.Context, communityID string, sess *Session, gen uint64) error {
	round, channelID, postGen, ok := m.beginPost(communityID, sess, gen)
	if !ok {
		return nil
	}
	messageID, err := m.announcer.PostQuestion(ctx, channelID, round)
	switch m.finishPost(communityID, sess, round, postGen, channelID, messageID, err) {
	case postStopped:
		return fmt.Errorf("%w: %v", ErrPostFailed, err)
	case postOrphaned:
		round.Remaining = 0
		m.reveal(ctx, communityID, sess, channelID, messageID, round)
	}
	return nil
}

// beginPost opens a new round if the session is still waiting for one. The
// returned generation identifies the round for finishPost.
func (m *Manager) beginPost(communityID string, sess *Session, gen uint64) (Round, string, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current(communityID, sess, gen) || !sess.Active || sess.CurrentQuestion != nil || sess.ChannelID == "" {
		return Round{}, "", 0, false
	}

	sess.timers.stopCooldown()
	sess.beginRound(m.bank.Pick(sess.LastQuestion), m.duration)
	m.store.Save()
	return m.roundLocked(sess), sess.ChannelID, sess.gen, true
}

type postOutcome int

const (
	postLive postOutcome = iota
	postStale
	postStopped
	postOrphaned
)

// finishPost starts the countdown once the question is visible, or stops
// the quiz when the channel could not be reached. Results for a round that
// ended while the post was in flight never touch the session; a message
// that landed for such a round is reported as orphaned so it can be closed.
func (m *Manager) finishPost(communityID string, sess *Session, round Round, gen uint64, channelID, messageID string, err error) postOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current(communityID, sess, gen) {
		cur, ok := m.store.Get(communityID)
		if err == nil && messageID != "" && ok && cur == sess && !m.closed {
			return postOrphaned
		}
		if err != nil {
			logger.Warn("Failed to post question for an ended round", "community", communityID, "round", round.Number, "error", err)
		}
		return postStale
	}
	if err != nil {
		logger.Error("Failed to post question, stopping quiz", "community", communityID, "channel", channelID, "error", err)
		_ = sess.Deactivate()
		m.sched.cancel(sess)
		m.store.Save()
		return postStopped
	}
	sess.messageID = messageID
	m.scheduleTickLocked(communityID, sess)
	return postLive
}

// reveal closes a round's message. Edits of a session's question message
// hold sess.edits so a late countdown edit cannot land after the reveal.
func (m *Manager) reveal(ctx context.Context, communityID string, sess *Session, channelID, messageID string, round Round) {
	sess.edits.Lock()
	defer sess.edits.Unlock()
	if err := m.announcer.RevealAnswer(ctx, channelID, messageID, round); err != nil {
		logger.Warn("Failed to reveal answer", "community", communityID, "round", round.Number, "error", err)
	}
}

func (m *Manager) updateCountdown(ctx context.Context, communityID string, sess *Session, step countdownStep) {
	sess.edits.Lock()
	defer sess.edits.Unlock()
	if !m.countdownCurrent(sess, step.round) {
		return
	}
	if err := m.announcer.UpdateCountdown(ctx, step.channelID, step.messageID, step.round); err != nil {
		logger.Warn("Failed to update countdown", "community", communityID, "error", err)
	}
}

// countdownCurrent reports whether round is still live and at the same
// remaining time.
func (m *Manager) countdownCurrent(sess *Session, round Round) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && sess.CurrentQuestion != nil && sess.Round == round.Number && sess.remaining == round.Remaining
}

func (m *Manager) scheduleTickLocked(communityID string, sess *Session) {
	gen := sess.gen
	m.sched.scheduleTick(sess, func() {
		m.tick(communityID, sess, gen)
	})
}

func (m *Manager) scheduleCooldownLocked(communityID string, sess *Session) {
	gen := sess.gen
	m.sched.scheduleCooldown(sess, func() {
		defer m.recoverCallback(communityID)
		_ = m.postQuestion(context.Background(), communityID, sess, gen)
	})
}

type countdownStep struct {
	round     Round
	channelID string
	messageID string
	expired   bool
	revealed  bool
}

func (m *Manager) tick(communityID string, sess *Session, gen uint64) {
	defer m.recoverCallback(communityID)

	step, ok := m.advanceCountdown(communityID, sess, gen)
	if !ok {
		return
	}
	ctx := context.Background()
	if !step.expired {
		m.updateCountdown(ctx, communityID, sess, step)
		return
	}
	if step.revealed {
		m.reveal(ctx, communityID, sess, step.channelID, step.messageID, step.round)
	}
}

// advanceCountdown consumes one tick. At zero, or when the round was closed
// out of band, it ends the round and arms the cooldown.
func (m *Manager) advanceCountdown(communityID string, sess *Session, gen uint64) (countdownStep, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current(communityID, sess, gen) {
		return countdownStep{}, false
	}

	sess.timers.countdown = nil
	sess.remaining--
	step := countdownStep{channelID: sess.ChannelID, messageID: sess.messageID}

	if sess.remaining > 0 && sess.Active && sess.CurrentQuestion != nil {
		step.round = m.roundLocked(sess)
		m.scheduleTickLocked(communityID, sess)
		return step, true
	}

	step.expired = true
	if sess.CurrentQuestion != nil {
		step.round = m.roundLocked(sess)
		step.round.Remaining = 0
	}
	_, step.revealed = sess.endRound()
	m.sched.cancel(sess)
	if sess.Active {
		m.scheduleCooldownLocked(communityID, sess)
	}
	m.store.Save()
	return step, true
}

func (m *Manager) roundLocked(sess *Session) Round {
	return Round{
		Number:    sess.Round,
		Question:  *sess.CurrentQuestion,
		Remaining: sess.remaining,
		Duration:  m.duration,
	}
}

func (m *Manager) recoverCallback(communityID string) {
	if r := recover(); r != nil {
		logger.Error("Recovered panic in quiz timer", "community", communityID, "panic", r)
	}
}
