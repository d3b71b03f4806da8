package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultCloseSkew delays the close callback slightly past the client-visible deadline.
const DefaultCloseSkew = 50 * time.Millisecond

// Scheduler arms one-shot question close timers, at most one per quiz.
// Callbacks must re-validate session state themselves: a timer that loses a race
// with Stop or Cancel may still fire once.
type Scheduler struct {
	clock clockwork.Clock
	skew  time.Duration

	mu     sync.Mutex
	seq    uint64
	timers map[string]armedTimer
}

type armedTimer struct {
	timer clockwork.Timer
	seq   uint64
}

func NewScheduler(clock clockwork.Clock, skew time.Duration) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if skew < 0 {
		skew = 0
	}
	return &Scheduler{
		clock:  clock,
		skew:   skew,
		timers: make(map[string]armedTimer),
	}
}

// Arm schedules fire to run after d plus skew, replacing any timer armed earlier for quizID.
func (s *Scheduler) Arm(quizID string, d time.Duration, fire func()) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	if prev, ok := s.timers[quizID]; ok {
		prev.timer.Stop()
		delete(s.timers, quizID)
		log.Debug().Str("quiz_id", quizID).Msg("replaced existing question timer")
	}
	s.mu.Unlock()

	timer := s.clock.AfterFunc(d+s.skew, func() {
		s.release(quizID, seq)
		fire()
	})

	s.mu.Lock()
	if cur, ok := s.timers[quizID]; !ok || cur.seq < seq {
		s.timers[quizID] = armedTimer{timer: timer, seq: seq}
	}
	s.mu.Unlock()

	log.Debug().
		Str("quiz_id", quizID).
		Dur("duration", d).
		Dur("skew", s.skew).
		Msg("armed question timer")
}

// Cancel stops the pending timer for quizID, if any.
func (s *Scheduler) Cancel(quizID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if armed, ok := s.timers[quizID]; ok {
		armed.timer.Stop()
		delete(s.timers, quizID)
		log.Debug().Str("quiz_id", quizID).Msg("cancelled question timer")
	}
}

// Pending reports whether a timer is armed for quizID.
func (s *Scheduler) Pending(quizID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[quizID]
	return ok
}

func (s *Scheduler) release(quizID string, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.timers[quizID]; ok && cur.seq == seq {
		delete(s.timers, quizID)
	}
}
