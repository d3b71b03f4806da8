package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

// QuizRepository stores quiz definitions in Redis.
// Layout:
//
//	quiz:{id}        JSON-encoded domain.Quiz
//	quiz:code:{code} quiz id, claimed with SETNX so codes stay unique across instances
//	quizzes          set of all quiz ids
type QuizRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewQuizRepository returns a repository whose keys expire after ttl; ttl <= 0 keeps them forever.
func NewQuizRepository(client *redis.Client, ttl time.Duration) *QuizRepository {
	if ttl < 0 {
		ttl = 0
	}
	return &QuizRepository{client: client, ttl: ttl}
}

func (r *QuizRepository) Create(ctx context.Context, quiz domain.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	claimed, err := r.client.SetNX(ctx, codeKey(quiz.Code), quiz.ID, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim join code: %w", err)
	}
	if !claimed {
		return domain.ErrCodeTaken
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, quizKey(quiz.ID), data, r.ttl)
		pipe.SAdd(ctx, indexKey, quiz.ID)
		return nil
	})
	if err != nil {
		_ = r.client.Del(ctx, codeKey(quiz.Code)).Err()
		return fmt.Errorf("store quiz: %w", err)
	}
	return nil
}

func (r *QuizRepository) Get(ctx context.Context, quizID string) (domain.Quiz, error) {
	raw, err := r.client.Get(ctx, quizKey(quizID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return decodeQuiz(raw)
}

func (r *QuizRepository) GetByCode(ctx context.Context, code string) (domain.Quiz, error) {
	quizID, err := r.client.Get(ctx, codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("resolve join code: %w", err)
	}
	return r.Get(ctx, quizID)
}

func (r *QuizRepository) List(ctx context.Context) ([]domain.Quiz, error) {
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list quiz ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, quizKey(id))
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load quizzes: %w", err)
	}
	quizzes := make([]domain.Quiz, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired or deleted between SMEMBERS and MGET
			continue
		}
		quiz, err := decodeQuiz([]byte(raw))
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, nil
}

func (r *QuizRepository) Update(ctx context.Context, quiz domain.Quiz) error {
	existing, err := r.Get(ctx, quiz.ID)
	if err != nil {
		return err
	}
	if existing.Code != quiz.Code {
		claimed, err := r.client.SetNX(ctx, codeKey(quiz.Code), quiz.ID, r.ttl).Result()
		if err != nil {
			return fmt.Errorf("claim join code: %w", err)
		}
		if !claimed {
			return domain.ErrCodeTaken
		}
		_ = r.client.Del(ctx, codeKey(existing.Code)).Err()
	}
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	ok, err := r.client.SetXX(ctx, quizKey(quiz.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("store quiz: %w", err)
	}
	if !ok {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (r *QuizRepository) Delete(ctx context.Context, quizID string) error {
	quiz, err := r.Get(ctx, quizID)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, quizKey(quizID), codeKey(quiz.Code))
		pipe.SRem(ctx, indexKey, quizID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return nil
}

const indexKey = "quizzes"

func quizKey(quizID string) string {
	return "quiz:" + quizID
}

func codeKey(code string) string {
	return "quiz:code:" + code
}

func decodeQuiz(raw []byte) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}
