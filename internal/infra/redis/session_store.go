package redis

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"live-quiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions themselves stay in a local map: timers, subscribers and the single writer
//     per quiz only exist in this process.
//   - Redis holds a liveness marker per session (value: join code) so operators and other
//     processes can see which quizzes are being run here.
//   - The marker expires after ttl unless the session is accessed; access refreshes it at
//     most once per half ttl.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	clock    clockwork.Clock
	mu       sync.RWMutex
	sessions map[string]*app.Session

	touchMu sync.Mutex
	touched map[string]time.Time
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		clock:    clockwork.NewRealClock(),
		sessions: make(map[string]*app.Session),
		touched:  make(map[string]time.Time),
	}
}

func (s *SessionStore) LoadOrStore(session *app.Session) *app.Session {
	quizID := session.QuizID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[quizID]; ok {
		return existing
	}
	s.sessions[quizID] = session
	// best-effort liveness marker
	if err := s.client.Set(context.Background(), s.key(quizID), session.Code(), s.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("quiz_id", quizID).Msg("failed to set session marker")
	}
	s.touchMu.Lock()
	s.touched[quizID] = s.clock.Now()
	s.touchMu.Unlock()
	return session
}

func (s *SessionStore) Get(quizID string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[quizID]
	s.mu.RUnlock()
	if ok {
		s.refresh(session)
	}
	return session, ok
}

func (s *SessionStore) Delete(quizID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[quizID]; !ok {
		return
	}
	delete(s.sessions, quizID)

	s.touchMu.Lock()
	defer s.touchMu.Unlock()
	delete(s.touched, quizID)
	if err := s.client.Del(context.Background(), s.key(quizID)).Err(); err != nil {
		log.Warn().Err(err).Str("quiz_id", quizID).Msg("failed to clear session marker")
	}
}

// refresh rewrites the marker once half of its ttl has elapsed since the last write.
// touchMu is held across the write so a concurrent Delete cannot be undone.
func (s *SessionStore) refresh(session *app.Session) {
	if s.ttl <= 0 {
		return
	}
	quizID := session.QuizID()
	now := s.clock.Now()
	s.touchMu.Lock()
	defer s.touchMu.Unlock()
	last, ok := s.touched[quizID]
	if !ok || now.Sub(last) < s.ttl/2 {
		return
	}
	s.touched[quizID] = now
	if err := s.client.Set(context.Background(), s.key(quizID), session.Code(), s.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("quiz_id", quizID).Msg("failed to refresh session marker")
	}
}

func (s *SessionStore) key(quizID string) string {
	return "quiz:session:" + quizID
}
