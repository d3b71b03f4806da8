package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/domain"
)

// maxCodeAttempts bounds join code regeneration on collision.
const maxCodeAttempts = 16

// QuizRepository stores quiz definitions, addressable by id and by join code.
// Create and Update must fail with domain.ErrCodeTaken when a code is already used.
type QuizRepository interface {
	Create(ctx context.Context, quiz domain.Quiz) error
	Get(ctx context.Context, quizID string) (domain.Quiz, error)
	GetByCode(ctx context.Context, code string) (domain.Quiz, error)
	List(ctx context.Context) ([]domain.Quiz, error)
	Update(ctx context.Context, quiz domain.Quiz) error
	Delete(ctx context.Context, quizID string) error
}

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Get(quizID string) (*Session, bool)
	// LoadOrStore returns the existing session for the quiz, or stores and returns session.
	LoadOrStore(session *Session) *Session
	Delete(quizID string)
}

// Options configure a QuizService. Zero values select production defaults.
type Options struct {
	Clock     clockwork.Clock
	CloseSkew time.Duration
	Policy    SessionPolicy
	Sinks     []EventSink
	IDs       func() string
	Codes     func() string
}

// QuizService is the session controller: the only entry point that mutates quizzes and sessions.
type QuizService struct {
	sessions    SessionRepository
	quizzes     QuizRepository
	clock       clockwork.Clock
	scheduler   *Scheduler
	broadcaster *Broadcaster
	policy      SessionPolicy
	ids         func() string
	codes       func() string

	sf singleflight.Group
	// lifecycle serializes session loading with quiz deletion.
	lifecycle sync.Mutex
}

func NewQuizService(store SessionRepository, quizzes QuizRepository, opts Options) *QuizService {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.CloseSkew == 0 {
		opts.CloseSkew = DefaultCloseSkew
	}
	if opts.IDs == nil {
		opts.IDs = newID
	}
	if opts.Codes == nil {
		opts.Codes = NewJoinCode
	}
	return &QuizService{
		sessions:    store,
		quizzes:     quizzes,
		clock:       opts.Clock,
		scheduler:   NewScheduler(opts.Clock, opts.CloseSkew),
		broadcaster: NewBroadcaster(opts.Sinks...),
		policy:      opts.Policy,
		ids:         opts.IDs,
		codes:       opts.Codes,
	}
}

// CreateQuiz validates input and stores a new draft quiz under a fresh id and join code.
func (s *QuizService) CreateQuiz(ctx context.Context, in domain.QuizInput) (domain.Quiz, error) {
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return domain.Quiz{}, err
	}
	questions, err := buildQuestions(in.Questions, s.ids)
	if err != nil {
		return domain.Quiz{}, err
	}
	now := s.clock.Now()
	quiz := domain.Quiz{
		ID:        s.ids(),
		Title:     title,
		Questions: questions,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.insertWithCode(ctx, quiz)
}

// ListQuizzes returns summaries ordered by creation time.
func (s *QuizService) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	quizzes, err := s.quizzes.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(quizzes, func(i, j int) bool {
		if !quizzes[i].CreatedAt.Equal(quizzes[j].CreatedAt) {
			return quizzes[i].CreatedAt.Before(quizzes[j].CreatedAt)
		}
		return quizzes[i].ID < quizzes[j].ID
	})
	summaries := make([]domain.QuizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		status := domain.StatusDraft
		if session, ok := s.sessions.Get(q.ID); ok {
			status = session.Status()
		}
		summaries = append(summaries, domain.QuizSummary{
			ID:            q.ID,
			Code:          q.Code,
			Title:         q.Title,
			Status:        status,
			CreatedAt:     q.CreatedAt,
			UpdatedAt:     q.UpdatedAt,
			QuestionCount: len(q.Questions),
		})
	}
	return summaries, nil
}

// GetQuiz returns the full definition, including option correctness.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.quizzes.Get(ctx, quizID)
}

// UpdateQuiz replaces title and questions and resets runtime state. Live quizzes are rejected.
func (s *QuizService) UpdateQuiz(ctx context.Context, quizID string, in domain.QuizInput) (domain.Quiz, error) {
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return domain.Quiz{}, err
	}
	questions, err := buildQuestions(in.Questions, s.ids)
	if err != nil {
		return domain.Quiz{}, err
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	quiz, err := s.quizzes.Get(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.Title = title
	quiz.Questions = questions
	quiz.UpdatedAt = s.clock.Now()

	commit := func() error { return s.quizzes.Update(ctx, quiz) }
	if session, ok := s.sessions.Get(quizID); ok {
		err = session.Reset(quiz, commit)
	} else {
		err = commit()
	}
	if err != nil {
		return domain.Quiz{}, err
	}
	log.Info().Str("quiz_id", quizID).Int("questions", len(questions)).Msg("quiz updated")
	return quiz, nil
}

// DuplicateQuiz copies a quiz's questions into a new draft quiz with its own id and code.
func (s *QuizService) DuplicateQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	src, err := s.quizzes.Get(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	now := s.clock.Now()
	quiz := domain.Quiz{
		ID:        s.ids(),
		Title:     src.Title + " (Copy)",
		Questions: copyQuestions(src.Questions, s.ids),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.insertWithCode(ctx, quiz)
}

// DeleteQuiz removes the quiz and tears down its runtime state and subscribers.
func (s *QuizService) DeleteQuiz(ctx context.Context, quizID string) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if err := s.quizzes.Delete(ctx, quizID); err != nil {
		return err
	}
	if session, ok := s.sessions.Get(quizID); ok {
		session.Teardown()
		s.sessions.Delete(quizID)
	}
	log.Info().Str("quiz_id", quizID).Msg("quiz deleted")
	return nil
}

// StartQuiz opens the first question of a draft quiz.
func (s *QuizService) StartQuiz(ctx context.Context, quizID string) (domain.LiveState, error) {
	session, err := s.session(ctx, quizID)
	if err != nil {
		return domain.LiveState{}, err
	}
	return session.Start()
}

// NextQuestion advances a live quiz, ending it after the last question.
func (s *QuizService) NextQuestion(ctx context.Context, quizID string) (domain.LiveState, error) {
	session, err := s.session(ctx, quizID)
	if err != nil {
		return domain.LiveState{}, err
	}
	return session.Next()
}

// StopQuiz ends the quiz from any state.
func (s *QuizService) StopQuiz(ctx context.Context, quizID string) (domain.LiveState, error) {
	session, err := s.session(ctx, quizID)
	if err != nil {
		return domain.LiveState{}, err
	}
	return session.Stop()
}

// JoinQuiz registers a new player in the quiz identified by its join code.
func (s *QuizService) JoinQuiz(ctx context.Context, code, name string) (domain.JoinResult, error) {
	quiz, err := s.quizzes.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return domain.JoinResult{}, err
	}
	session, err := s.session(ctx, quiz.ID)
	if err != nil {
		return domain.JoinResult{}, err
	}
	return session.Join(name)
}

// SubmitAnswer scores a player's answer to the current question.
func (s *QuizService) SubmitAnswer(ctx context.Context, quizID string, submission domain.AnswerSubmission) (domain.AnswerResult, error) {
	session, err := s.session(ctx, quizID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return session.Answer(submission)
}

// GetState returns the current snapshot of the quiz.
func (s *QuizService) GetState(ctx context.Context, quizID string) (domain.LiveState, error) {
	session, err := s.session(ctx, quizID)
	if err != nil {
		return domain.LiveState{}, err
	}
	return session.State()
}

// Subscribe returns a channel of quiz events, starting with a full snapshot.
// The caller must invoke the returned cancel function to avoid leaks. The channel is
// closed when the quiz is deleted.
func (s *QuizService) Subscribe(ctx context.Context, quizID string) (<-chan domain.Event, func(), error) {
	session, err := s.session(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}
	return session.Subscribe()
}

// session returns the live session for quizID, loading the quiz on first use.
// Concurrent first loads of the same quiz are coalesced.
func (s *QuizService) session(ctx context.Context, quizID string) (*Session, error) {
	if session, ok := s.sessions.Get(quizID); ok {
		return session, nil
	}
	result, err, _ := s.sf.Do(quizID, func() (interface{}, error) {
		s.lifecycle.Lock()
		defer s.lifecycle.Unlock()

		if session, ok := s.sessions.Get(quizID); ok {
			return session, nil
		}
		quiz, err := s.quizzes.Get(ctx, quizID)
		if err != nil {
			return nil, err
		}
		session := NewSession(quiz, SessionDeps{
			Clock:       s.clock,
			Scheduler:   s.scheduler,
			Broadcaster: s.broadcaster,
			Policy:      s.policy,
			IDs:         s.ids,
		})
		return s.sessions.LoadOrStore(session), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Session), nil
}

func (s *QuizService) insertWithCode(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		quiz.Code = s.codes()
		err := s.quizzes.Create(ctx, quiz)
		if err == nil {
			log.Info().Str("quiz_id", quiz.ID).Str("code", quiz.Code).Msg("quiz created")
			return quiz, nil
		}
		if !errors.Is(err, domain.ErrCodeTaken) {
			return domain.Quiz{}, err
		}
		log.Debug().Str("code", quiz.Code).Msg("join code collision, regenerating")
	}
	return domain.Quiz{}, fmt.Errorf("allocate join code after %d attempts: %w", maxCodeAttempts, domain.ErrCodeTaken)
}
