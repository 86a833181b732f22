// Package followup decides between another follow-up and advancing the question, and
// owns the inactivity timer that prompts an idle candidate.
package followup

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/intervue/internal/turn"
)

// DefaultWindow is the inactivity window for dsa questions.
const DefaultWindow = 60 * time.Second

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock schedules on the runtime timer heap.
func RealClock() Clock { return realClock{} }

// Fire identifies one inactivity timer expiry.
type Fire struct {
	Token      uint64
	QuestionID string
}

// Outcome is the scheduler's decision after a completed turn.
type Outcome struct {
	Budget int
	// Advance moves to the next question; Finish forces END first when it was not reached.
	Advance bool
	Finish  bool
	// Reopen returns an END question to FOLLOWUP for another follow-up turn.
	Reopen bool
}

// Scheduler is owned by one session.
type Scheduler struct {
	logger *slog.Logger
	clock  Clock
	window time.Duration
	onFire func(Fire)

	mu         sync.Mutex
	token      uint64
	questionID string
	budget     int
	inactivity bool
	timer      Timer
}

// New constructs a scheduler. onFire runs on the clock's goroutine outside internal locks.
func New(logger *slog.Logger, clock Clock, window time.Duration, onFire func(Fire)) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if clock == nil {
		clock = RealClock()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if onFire == nil {
		onFire = func(Fire) {}
	}
	return &Scheduler{logger: logger, clock: clock, window: window, onFire: onFire}
}

// Prime loads a question: it invalidates any previous timer, resets the budget, and arms
// the inactivity timer when inactivity is set. It returns the new token.
func (s *Scheduler) Prime(questionID string, allowance int, inactivity bool) uint64 {
	if allowance < 0 {
		allowance = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.questionID = questionID
	s.budget = allowance
	s.inactivity = inactivity
	if inactivity {
		s.armLocked()
	}
	return s.token
}

// Cancel invalidates the pending timer. A timer that already fired becomes a no-op.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	s.stopLocked()
	s.inactivity = false
	s.mu.Unlock()
}

// CompleteTurn applies the budget rule for a submission made in state submitted that
// moved the machine to next.
func (s *Scheduler) CompleteTurn(submitted, next turn.State) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if submitted == turn.StateAsk {
		s.rearmLocked()
		return Outcome{Budget: s.budget}
	}

	if submitted == turn.StateFollowup && s.budget > 0 {
		s.budget--
	}

	if s.budget == 0 {
		s.stopLocked()
		return Outcome{Budget: 0, Advance: true, Finish: next != turn.StateEnd}
	}

	s.rearmLocked()
	return Outcome{Budget: s.budget, Reopen: next == turn.StateEnd}
}

// Budget returns the remaining follow-up allowance.
func (s *Scheduler) Budget() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

// Current reports whether token is still the live token.
func (s *Scheduler) Current(token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token == token
}

func (s *Scheduler) rearmLocked() {
	s.stopLocked()
	if s.inactivity {
		s.armLocked()
	}
}

func (s *Scheduler) stopLocked() {
	s.token++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) armLocked() {
	armed := s.token
	questionID := s.questionID
	s.timer = s.clock.AfterFunc(s.window, func() { s.fire(armed, questionID) })
}

// fire compares the token captured at arm time with the live token.
func (s *Scheduler) fire(armed uint64, questionID string) {
	s.mu.Lock()
	if s.token != armed {
		s.mu.Unlock()
		s.logger.Debug("stale inactivity timer ignored", "question_id", questionID)
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.onFire(Fire{Token: armed, QuestionID: questionID})
}
