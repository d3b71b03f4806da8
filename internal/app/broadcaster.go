package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"live-quiz-service/internal/domain"
)

// subscriberBuffer must hold the initial snapshot burst (at most three events).
const subscriberBuffer = 16

// EventSink receives a copy of every published event, e.g. to relay it to another system.
// Implementations must not block.
type EventSink interface {
	Publish(quizID string, event domain.Event)
}

// Broadcaster keeps the per-quiz subscriber sets and fans events out to them.
type Broadcaster struct {
	mu    sync.RWMutex
	subs  map[string]map[chan domain.Event]struct{}
	sinks []EventSink
}

func NewBroadcaster(sinks ...EventSink) *Broadcaster {
	return &Broadcaster{
		subs:  make(map[string]map[chan domain.Event]struct{}),
		sinks: sinks,
	}
}

// Subscribe registers a channel for quizID and queues the initial events on it before
// any later Publish can reach it. The returned cancel func is idempotent.
func (b *Broadcaster) Subscribe(quizID string, initial ...domain.Event) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[quizID] == nil {
		b.subs[quizID] = make(map[chan domain.Event]struct{})
	}
	b.subs[quizID][ch] = struct{}{}
	for _, ev := range initial {
		ch <- ev
	}
	total := len(b.subs[quizID])
	b.mu.Unlock()

	log.Debug().Str("quiz_id", quizID).Int("subscribers", total).Msg("subscriber registered")

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		set, ok := b.subs[quizID]
		if !ok {
			return
		}
		if _, ok := set[ch]; !ok {
			return
		}
		delete(set, ch)
		close(ch)
		if len(set) == 0 {
			delete(b.subs, quizID)
		}
		log.Debug().Str("quiz_id", quizID).Int("subscribers", len(set)).Msg("subscriber removed")
	}
	return ch, cancel
}

// Publish delivers event to every subscriber of quizID without blocking.
// A subscriber whose buffer is full loses its oldest queued event: every event is a full
// snapshot, so the newest one supersedes whatever was dropped.
func (b *Broadcaster) Publish(quizID string, event domain.Event) {
	b.mu.RLock()
	for ch := range b.subs[quizID] {
		select {
		case ch <- event:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- event:
		default:
			log.Warn().Str("quiz_id", quizID).Str("event_type", string(event.Type)).Msg("dropped event for slow subscriber")
		}
	}
	b.mu.RUnlock()

	for _, sink := range b.sinks {
		sink.Publish(quizID, event)
	}
}

// CloseQuiz closes and removes every subscriber of quizID.
func (b *Broadcaster) CloseQuiz(quizID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[quizID] {
		close(ch)
	}
	delete(b.subs, quizID)
}

// Subscribers returns the number of live subscriptions for quizID.
func (b *Broadcaster) Subscribers(quizID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[quizID])
}
