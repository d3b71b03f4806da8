package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"live-quiz-service/internal/domain"
)

// SessionPolicy tunes answer handling for a session.
type SessionPolicy struct {
	// SingleAttempt rejects any further submission once a player answered the current question.
	SingleAttempt bool
}

// Session is the runtime state of one quiz. Every mutation happens under mu, so
// operations on one quiz are serialized while different quizzes proceed independently.
type Session struct {
	mu sync.Mutex

	quiz  domain.Quiz
	index int
	// run increments on every start, reset and teardown; with index it identifies an armed timer.
	run           int
	deadline      time.Time
	questionStart time.Time
	players       map[string]*domain.Player
	correct       map[string]struct{}
	attempted     map[string]struct{}
	deleted       bool

	clock       clockwork.Clock
	scheduler   *Scheduler
	broadcaster *Broadcaster
	policy      SessionPolicy
	ids         func() string
}

// SessionDeps are the collaborators a Session publishes and schedules through.
type SessionDeps struct {
	Clock       clockwork.Clock
	Scheduler   *Scheduler
	Broadcaster *Broadcaster
	Policy      SessionPolicy
	IDs         func() string
}

// NewSession creates a draft session for quiz.
func NewSession(quiz domain.Quiz, deps SessionDeps) *Session {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Scheduler == nil {
		deps.Scheduler = NewScheduler(deps.Clock, DefaultCloseSkew)
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = NewBroadcaster()
	}
	if deps.IDs == nil {
		deps.IDs = newID
	}
	return &Session{
		quiz:        quiz,
		index:       -1,
		players:     make(map[string]*domain.Player),
		correct:     make(map[string]struct{}),
		attempted:   make(map[string]struct{}),
		clock:       deps.Clock,
		scheduler:   deps.Scheduler,
		broadcaster: deps.Broadcaster,
		policy:      deps.Policy,
		ids:         deps.IDs,
	}
}

// QuizID returns the id of the quiz this session runs.
func (s *Session) QuizID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiz.ID
}

// Code returns the join code of the quiz.
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiz.Code
}

// Status is derived from the question index.
func (s *Session) Status() domain.QuizStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Start moves a draft quiz to its first question.
func (s *Session) Start() (domain.LiveState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		return domain.LiveState{}, domain.ErrQuizNotFound
	}
	if s.statusLocked() != domain.StatusDraft {
		return domain.LiveState{}, domain.ErrAlreadyStarted
	}
	if len(s.quiz.Questions) == 0 {
		return domain.LiveState{}, domain.ErrNoQuestions
	}

	s.run++
	s.index = 0
	for _, p := range s.players {
		p.Score = 0
		p.CorrectCount = 0
		p.LastAnswerAt = time.Time{}
	}
	s.armLocked()

	state := s.snapshotLocked()
	s.publishLocked(domain.EventQuizStarted, state)
	log.Info().Str("quiz_id", s.quiz.ID).Int("players", len(s.players)).Msg("quiz started")
	return state, nil
}

// Next advances a live quiz by exactly one question, ending it after the last one.
func (s *Session) Next() (domain.LiveState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		return domain.LiveState{}, domain.ErrQuizNotFound
	}
	if s.statusLocked() != domain.StatusLive {
		return domain.LiveState{}, domain.ErrQuizNotActive
	}

	s.index++
	if s.index >= len(s.quiz.Questions) {
		s.index = len(s.quiz.Questions)
		s.closeLocked()
		state := s.snapshotLocked()
		s.publishLocked(domain.EventResult, state)
		log.Info().Str("quiz_id", s.quiz.ID).Msg("quiz ended")
		return state, nil
	}

	s.armLocked()
	return s.snapshotLocked(), nil
}

// Stop forces the quiz to ended from any state. Calling it again is harmless.
func (s *Session) Stop() (domain.LiveState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		return domain.LiveState{}, domain.ErrQuizNotFound
	}
	s.index = len(s.quiz.Questions)
	s.closeLocked()
	state := s.snapshotLocked()
	s.publishLocked(domain.EventQuizStopped, state)
	log.Info().Str("quiz_id", s.quiz.ID).Msg("quiz stopped")
	return state, nil
}

// Join adds a new player. Joining is allowed in every state so late joiners can play.
func (s *Session) Join(name string) (domain.JoinResult, error) {
	name, err := normalizeName(name)
	if err != nil {
		return domain.JoinResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		return domain.JoinResult{}, domain.ErrQuizNotFound
	}
	player := &domain.Player{ID: s.ids(), Name: name}
	s.players[player.ID] = player
	s.publishLocked(domain.EventLeaderboard, s.snapshotLocked())

	log.Debug().Str("quiz_id", s.quiz.ID).Str("player_id", player.ID).Msg("player joined")
	return domain.JoinResult{
		QuizID:   s.quiz.ID,
		PlayerID: player.ID,
		Code:     s.quiz.Code,
		Title:    s.quiz.Title,
	}, nil
}

// Answer validates a submission against the current question and scores it.
func (s *Session) Answer(sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		return domain.AnswerResult{}, domain.ErrQuizNotFound
	}
	if s.statusLocked() != domain.StatusLive {
		return domain.AnswerResult{}, domain.ErrQuizNotActive
	}
	question := s.quiz.Questions[s.index]
	if sub.QuestionID != question.ID {
		if s.hasQuestionLocked(sub.QuestionID) {
			return domain.AnswerResult{}, domain.ErrNotCurrentQuestion
		}
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	now := s.clock.Now()
	if s.deadline.IsZero() || now.After(s.deadline) {
		return domain.AnswerResult{}, domain.ErrTimeOver
	}
	player, ok := s.players[sub.PlayerID]
	if !ok {
		return domain.AnswerResult{}, domain.ErrPlayerNotFound
	}
	option, ok := findOption(question, sub.OptionID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrOptionNotFound
	}

	_, credited := s.correct[player.ID]
	duplicate := option.Correct && credited
	if duplicate {
		return domain.AnswerResult{OK: true, Correct: true, Gained: 0}, nil
	}
	if s.policy.SingleAttempt {
		if _, tried := s.attempted[player.ID]; tried {
			return domain.AnswerResult{}, domain.ErrAlreadyAnswered
		}
	}
	s.attempted[player.ID] = struct{}{}

	gained := applyScore(player, scoreInput{
		Correct:         option.Correct,
		AlreadyCredited: credited,
		FirstCorrect:    len(s.correct) == 0,
		Elapsed:         now.Sub(s.questionStart),
		TimerSec:        question.TimerSec,
	}, now)
	if option.Correct {
		s.correct[player.ID] = struct{}{}
	}
	s.publishLocked(domain.EventLeaderboard, s.snapshotLocked())

	log.Debug().
		Str("quiz_id", s.quiz.ID).
		Str("player_id", player.ID).
		Int("question_index", s.index).
		Bool("correct", option.Correct).
		Int("gained", gained).
		Msg("answer recorded")
	return domain.AnswerResult{OK: true, Correct: option.Correct, Gained: gained}, nil
}

// State returns the current snapshot.
func (s *Session) State() (domain.LiveState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleted {
		return domain.LiveState{}, domain.ErrQuizNotFound
	}
	return s.snapshotLocked(), nil
}

// Subscribe registers a subscriber that first receives a heartbeat, the leaderboard and,
// once the quiz has started, the question snapshot. A torn down session registers nothing.
func (s *Session) Subscribe() (<-chan domain.Event, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		return nil, nil, domain.ErrQuizNotFound
	}
	state := s.snapshotLocked()
	initial := []domain.Event{
		{Type: domain.EventHeartbeat, Now: domain.EpochMillis(s.clock.Now())},
		{Type: domain.EventLeaderboard, State: &state},
	}
	if state.Status != domain.StatusDraft {
		questionState := state
		initial = append(initial, domain.Event{Type: domain.EventQuestion, State: &questionState})
	}
	ch, cancel := s.broadcaster.Subscribe(s.quiz.ID, initial...)
	return ch, cancel, nil
}

// Reset replaces the quiz definition and returns the session to draft, keeping players.
// commit runs under the session lock before anything changes; a live quiz is rejected.
func (s *Session) Reset(quiz domain.Quiz, commit func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		return domain.ErrQuizNotFound
	}
	if s.statusLocked() == domain.StatusLive {
		return domain.ErrQuizLive
	}
	if commit != nil {
		if err := commit(); err != nil {
			return err
		}
	}
	s.run++
	s.quiz = quiz
	s.index = -1
	s.closeLocked()
	s.correct = make(map[string]struct{})
	s.attempted = make(map[string]struct{})
	s.publishLocked(domain.EventLeaderboard, s.snapshotLocked())
	return nil
}

// Teardown releases the timer and all subscribers. The session is unusable afterwards.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = true
	s.run++
	s.scheduler.Cancel(s.quiz.ID)
	s.broadcaster.CloseQuiz(s.quiz.ID)
}

// closeQuestion is the timer callback. It is a no-op unless the session is still on the
// question (run, index) it was armed for.
func (s *Session) closeQuestion(run, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted || s.run != run || s.index != index || s.deadline.IsZero() {
		log.Debug().Str("quiz_id", s.quiz.ID).Int("question_index", index).Msg("stale question timer ignored")
		return
	}
	s.deadline = time.Time{}
	s.publishLocked(domain.EventLeaderboard, s.snapshotLocked())
	log.Debug().Str("quiz_id", s.quiz.ID).Int("question_index", index).Msg("question closed")
}

// armLocked opens the current question and schedules its automatic close.
func (s *Session) armLocked() {
	question := s.quiz.Questions[s.index]
	duration := time.Duration(question.TimerSec) * time.Second
	now := s.clock.Now()

	s.questionStart = now
	s.deadline = now.Add(duration)
	s.correct = make(map[string]struct{})
	s.attempted = make(map[string]struct{})

	run, index := s.run, s.index
	s.scheduler.Arm(s.quiz.ID, duration, func() {
		s.closeQuestion(run, index)
	})
	s.publishLocked(domain.EventQuestion, s.snapshotLocked())
}

func (s *Session) closeLocked() {
	s.deadline = time.Time{}
	s.scheduler.Cancel(s.quiz.ID)
}

func (s *Session) statusLocked() domain.QuizStatus {
	switch {
	case s.index < 0:
		return domain.StatusDraft
	case s.index >= len(s.quiz.Questions):
		return domain.StatusEnded
	default:
		return domain.StatusLive
	}
}

// revealLocked: answers are shown once the quiz ended or the live question was closed.
func (s *Session) revealLocked() bool {
	switch s.statusLocked() {
	case domain.StatusEnded:
		return true
	case domain.StatusLive:
		return s.deadline.IsZero()
	default:
		return false
	}
}

func (s *Session) snapshotLocked() domain.LiveState {
	status := s.statusLocked()
	reveal := s.revealLocked()
	state := domain.LiveState{
		QuizID:               s.quiz.ID,
		Code:                 s.quiz.Code,
		Status:               status,
		CurrentQuestionIndex: s.index,
		RevealAnswers:        reveal,
		Leaderboard:          rankPlayers(s.players),
	}
	if status == domain.StatusLive {
		q := publicQuestion(s.quiz.Questions[s.index], reveal)
		state.Question = &q
	}
	if !s.deadline.IsZero() {
		deadline := domain.EpochMillis(s.deadline)
		state.Deadline = &deadline
	}
	return state
}

func (s *Session) publishLocked(eventType domain.EventType, state domain.LiveState) {
	if s.deleted {
		return
	}
	s.broadcaster.Publish(s.quiz.ID, domain.Event{Type: eventType, State: &state})
}

func (s *Session) hasQuestionLocked(questionID string) bool {
	for _, q := range s.quiz.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

func findOption(q domain.Question, optionID string) (domain.Option, bool) {
	for _, o := range q.Options {
		if o.ID == optionID {
			return o, true
		}
	}
	return domain.Option{}, false
}

// publicQuestion strips option correctness unless reveal is set.
func publicQuestion(q domain.Question, reveal bool) domain.PublicQuestion {
	options := make([]domain.PublicOption, 0, len(q.Options))
	for _, o := range q.Options {
		opt := domain.PublicOption{ID: o.ID, Text: o.Text}
		if reveal {
			correct := o.Correct
			opt.Correct = &correct
		}
		options = append(options, opt)
	}
	return domain.PublicQuestion{ID: q.ID, Text: q.Text, TimerSec: q.TimerSec, Options: options}
}
