package app

import (
	"math"
	"strings"
	"unicode/utf8"

	"live-quiz-service/internal/domain"
)

const (
	minTimerSec     = 5
	maxTimerSec     = 300
	defaultTimerSec = 30
	maxNameLength   = 40
	minOptions      = 2
)

// clampTimer floors the requested timer and clamps it to [5,300]; zero or missing means 30.
func clampTimer(raw float64) int {
	if math.IsNaN(raw) || raw == 0 {
		return defaultTimerSec
	}
	sec := math.Max(minTimerSec, math.Min(math.Floor(raw), maxTimerSec))
	return int(sec)
}

// buildQuestions validates authoring input and assigns fresh ids to every question and option.
func buildQuestions(in []domain.QuestionInput, ids func() string) ([]domain.Question, error) {
	if in == nil {
		return nil, domain.ErrInvalidQuestions
	}
	questions := make([]domain.Question, 0, len(in))
	for _, qi := range in {
		text := strings.TrimSpace(qi.Text)
		if text == "" || len(qi.Options) < minOptions {
			return nil, domain.ErrInvalidQuestions
		}
		options := make([]domain.Option, 0, len(qi.Options))
		for _, oi := range qi.Options {
			optText := strings.TrimSpace(oi.Text)
			if optText == "" {
				return nil, domain.ErrInvalidQuestions
			}
			options = append(options, domain.Option{ID: ids(), Text: optText, Correct: oi.Correct})
		}
		questions = append(questions, domain.Question{
			ID:       ids(),
			Text:     text,
			Options:  options,
			TimerSec: clampTimer(qi.TimerSec),
		})
	}
	return questions, nil
}

// copyQuestions clones questions under fresh ids, keeping text, timer and correctness.
func copyQuestions(src []domain.Question, ids func() string) []domain.Question {
	out := make([]domain.Question, 0, len(src))
	for _, q := range src {
		options := make([]domain.Option, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, domain.Option{ID: ids(), Text: o.Text, Correct: o.Correct})
		}
		out = append(out, domain.Question{ID: ids(), Text: q.Text, Options: options, TimerSec: q.TimerSec})
	}
	return out
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", domain.ErrTitleRequired
	}
	return title, nil
}

// normalizeName trims a display name and truncates it to 40 characters.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.ErrNameRequired
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:maxNameLength]))
	}
	return name, nil
}
