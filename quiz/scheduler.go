package quiz

import "time"

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. The real clock wraps time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns the wall clock.
func RealClock() Clock {
	return realClock{}
}

// timers are the process-local handles of one session. They are never
// persisted.
type timers struct {
	countdown Timer
	cooldown  Timer
}

func (t *timers) stopCountdown() {
	if t.countdown != nil {
		t.countdown.Stop()
		t.countdown = nil
	}
}

func (t *timers) stopCooldown() {
	if t.cooldown != nil {
		t.cooldown.Stop()
		t.cooldown = nil
	}
}

func (t *timers) stopAll() {
	t.stopCountdown()
	t.stopCooldown()
}

// Scheduler owns every timer side effect of the quiz: the per-second
// countdown of a posted question and the cooldown before the next one.
type Scheduler struct {
	clock    Clock
	tick     time.Duration
	cooldown time.Duration
}

// NewScheduler returns a scheduler with the given tick and cooldown.
func NewScheduler(clock Clock, tick, cooldown time.Duration) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{clock: clock, tick: tick, cooldown: cooldown}
}

// scheduleTick arms the next countdown tick, replacing any pending one.
func (s *Scheduler) scheduleTick(sess *Session, f func()) {
	sess.timers.stopCountdown()
	sess.timers.countdown = s.clock.AfterFunc(s.tick, f)
}

// scheduleCooldown arms the delay before the next question, replacing any
// pending one so at most one is ever outstanding.
func (s *Scheduler) scheduleCooldown(sess *Session, f func()) {
	sess.timers.stopCooldown()
	sess.timers.cooldown = s.clock.AfterFunc(s.cooldown, f)
}

// cancel stops every timer of the session. Safe to call repeatedly.
func (s *Scheduler) cancel(sess *Session) {
	sess.timers.stopAll()
}
