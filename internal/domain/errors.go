package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Specific errors below wrap exactly one of these.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrInvalidState   = errors.New("invalid state")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrDeadlinePassed = errors.New("deadline passed")
)

var (
	// ErrQuizNotFound indicates the quiz id or join code is unknown.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrPlayerNotFound is returned when a player id is not part of the quiz.
	ErrPlayerNotFound = fmt.Errorf("player %w", ErrNotFound)
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = fmt.Errorf("option %w", ErrNotFound)

	ErrTitleRequired    = fmt.Errorf("%w: title required", ErrInvalidPayload)
	ErrInvalidQuestions = fmt.Errorf("%w: malformed question list", ErrInvalidPayload)
	ErrNameRequired     = fmt.Errorf("%w: name required", ErrInvalidPayload)

	ErrQuizNotActive      = fmt.Errorf("%w: quiz not active", ErrInvalidState)
	ErrNotCurrentQuestion = fmt.Errorf("%w: not current question", ErrInvalidState)
	ErrAlreadyStarted     = fmt.Errorf("%w: quiz already started", ErrInvalidState)
	ErrNoQuestions        = fmt.Errorf("%w: quiz has no questions", ErrInvalidState)
	ErrQuizLive           = fmt.Errorf("%w: quiz is live", ErrInvalidState)
	ErrAlreadyAnswered    = fmt.Errorf("%w: already answered", ErrInvalidState)

	ErrTimeOver = fmt.Errorf("%w: time over", ErrDeadlinePassed)

	ErrInvalidAdminKey = fmt.Errorf("%w: invalid admin key", ErrUnauthorized)

	// ErrCodeTaken is returned by repositories when a join code collides.
	ErrCodeTaken = errors.New("join code already in use")
)
