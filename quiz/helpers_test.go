package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

// fakeClock only runs callbacks when the test fires them.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) pending(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if t.d == d && !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fire runs the oldest pending timer with duration d.
func (c *fakeClock) fire(d time.Duration) bool {
	c.mu.Lock()
	var next *fakeTimer
	for _, t := range c.timers {
		if t.d == d && !t.stopped && !t.fired {
			next = t
			break
		}
	}
	if next == nil {
		c.mu.Unlock()
		return false
	}
	next.fired = true
	c.mu.Unlock()
	next.f()
	return true
}

// fireStopped runs callbacks of timers that were stopped before firing, as
// if they had already been dispatched when Stop was called.
func (c *fakeClock) fireStopped() int {
	c.mu.Lock()
	var stale []*fakeTimer
	for _, t := range c.timers {
		if t.stopped && !t.fired {
			t.fired = true
			stale = append(stale, t)
		}
	}
	c.mu.Unlock()
	for _, t := range stale {
		t.f()
	}
	return len(stale)
}

type fakeAnnouncer struct {
	mu        sync.Mutex
	posts     []Round
	updates   []Round
	reveals   []Round
	revealIDs []string
	postErr   error
	channels  []string
	held      *heldPost
}

// heldPost blocks one PostQuestion call until release is closed.
type heldPost struct {
	err     error
	entered chan struct{}
	release chan struct{}
}

// holdNextPost makes the next PostQuestion block until release is closed,
// then return err.
func (a *fakeAnnouncer) holdNextPost(err error) *heldPost {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.held = &heldPost{err: err, entered: make(chan struct{}), release: make(chan struct{})}
	return a.held
}

func (a *fakeAnnouncer) PostQuestion(ctx context.Context, channelID string, round Round) (string, error) {
	a.mu.Lock()
	held := a.held
	a.held = nil
	a.mu.Unlock()

	if held != nil {
		close(held.entered)
		<-held.release
		if held.err != nil {
			return "", held.err
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.postErr != nil {
		return "", a.postErr
	}
	a.posts = append(a.posts, round)
	a.channels = append(a.channels, channelID)
	return fmt.Sprintf("msg-%d", round.Number), nil
}

func (a *fakeAnnouncer) UpdateCountdown(ctx context.Context, channelID, messageID string, round Round) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updates = append(a.updates, round)
	return nil
}

func (a *fakeAnnouncer) RevealAnswer(ctx context.Context, channelID, messageID string, round Round) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reveals = append(a.reveals, round)
	a.revealIDs = append(a.revealIDs, messageID)
	return nil
}

func (a *fakeAnnouncer) counts() (posts, updates, reveals int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.posts), len(a.updates), len(a.reveals)
}

// memSnapshot round-trips through JSON so tests see exactly what a file
// backend would persist.
type memSnapshot struct {
	data    []byte
	saves   int
	loadErr error
	saveErr error
}

func (s *memSnapshot) Load() (map[string]*Session, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make(map[string]*Session)
	if s.data == nil {
		return out, nil
	}
	if err := json.Unmarshal(s.data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *memSnapshot) Save(sessions map[string]*Session) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return err
	}
	s.data = data
	s.saves++
	return nil
}

const (
	testTick     = time.Second
	testCooldown = 30 * time.Second
	guildID      = "guild-1"
	channelID    = "chan-1"
)

var errUnreachable = errors.New("unknown channel")

type harness struct {
	m     *Manager
	clock *fakeClock
	ann   *fakeAnnouncer
	snap  *memSnapshot
	eval  *Evaluator
}

func newHarness(t *testing.T, questions []Question, duration int) *harness {
	t.Helper()
	eval, err := NewEvaluator(DefaultFoldConfig())
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	bank, err := NewBank(questions, nil)
	if err != nil {
		t.Fatalf("NewBank() error = %v", err)
	}
	h := &harness{
		clock: &fakeClock{},
		ann:   &fakeAnnouncer{},
		snap:  &memSnapshot{},
		eval:  eval,
	}
	store := NewStore(h.snap)
	store.Load()
	h.m = NewManager(store, bank, eval, h.ann, Options{
		QuestionDuration: duration,
		Tick:             testTick,
		Cooldown:         testCooldown,
		Clock:            h.clock,
	})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.m.Setup(guildID, channelID); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := h.m.Start(context.Background(), guildID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

// waitEntered blocks until the held post has started.
func (p *heldPost) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-p.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("post never started")
	}
}

func textQuestion() []Question {
	return []Question{{Text: "Q1", CorrectAnswer: "A"}}
}

func intPtr(i int) *int { return &i }
