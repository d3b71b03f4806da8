package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// QuizRepository keeps quiz definitions in process memory, indexed by id and join code.
type QuizRepository struct {
	mu     sync.RWMutex
	byID   map[string]domain.Quiz
	byCode map[string]string
}

func NewQuizRepository() *QuizRepository {
	return &QuizRepository{
		byID:   make(map[string]domain.Quiz),
		byCode: make(map[string]string),
	}
}

func (r *QuizRepository) Create(_ context.Context, quiz domain.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCode[quiz.Code]; ok {
		return domain.ErrCodeTaken
	}
	r.byID[quiz.ID] = cloneQuiz(quiz)
	r.byCode[quiz.Code] = quiz.ID
	return nil
}

func (r *QuizRepository) Get(_ context.Context, quizID string) (domain.Quiz, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	quiz, ok := r.byID[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(quiz), nil
}

func (r *QuizRepository) GetByCode(ctx context.Context, code string) (domain.Quiz, error) {
	r.mu.RLock()
	quizID, ok := r.byCode[code]
	r.mu.RUnlock()
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return r.Get(ctx, quizID)
}

func (r *QuizRepository) List(_ context.Context) ([]domain.Quiz, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(r.byID))
	for _, quiz := range r.byID {
		out = append(out, cloneQuiz(quiz))
	}
	return out, nil
}

// Update replaces a stored quiz. The join code may change as long as it stays unique.
func (r *QuizRepository) Update(_ context.Context, quiz domain.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[quiz.ID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if existing.Code != quiz.Code {
		if _, taken := r.byCode[quiz.Code]; taken {
			return domain.ErrCodeTaken
		}
		delete(r.byCode, existing.Code)
		r.byCode[quiz.Code] = quiz.ID
	}
	r.byID[quiz.ID] = cloneQuiz(quiz)
	return nil
}

func (r *QuizRepository) Delete(_ context.Context, quizID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	quiz, ok := r.byID[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	delete(r.byID, quizID)
	delete(r.byCode, quiz.Code)
	return nil
}

// cloneQuiz copies the question and option slices so callers cannot mutate stored state.
func cloneQuiz(q domain.Quiz) domain.Quiz {
	out := q
	out.Questions = make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]domain.Option(nil), question.Options...)
		out.Questions[i] = question
	}
	return out
}
