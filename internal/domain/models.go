package domain

import "time"

// QuizStatus is derived from the current question index, never stored.
type QuizStatus string

const (
	StatusDraft QuizStatus = "draft"
	StatusLive  QuizStatus = "live"
	StatusEnded QuizStatus = "ended"
)

// Option represents a possible answer for a question.
// Correct is only serialized on the admin/host channel; participants see PublicOption.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models a timed MCQ question.
type Question struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Options  []Option `json:"options"`
	TimerSec int      `json:"timerSec"`
}

// Quiz is an ordered collection of questions addressable by id and join code.
type Quiz struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// QuizSummary is the list view of a quiz.
type QuizSummary struct {
	ID            string     `json:"id"`
	Code          string     `json:"code"`
	Title         string     `json:"title"`
	Status        QuizStatus `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	QuestionCount int        `json:"questionCount"`
}

// QuizInput is the authoring payload for create and update.
type QuizInput struct {
	Title     string          `json:"title"`
	Questions []QuestionInput `json:"questions"`
}

type QuestionInput struct {
	Text     string        `json:"text"`
	TimerSec float64       `json:"timerSec"`
	Options  []OptionInput `json:"options"`
}

type OptionInput struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Player is a participant joined to exactly one quiz.
type Player struct {
	ID           string
	Name         string
	Score        int
	CorrectCount int
	LastAnswerAt time.Time
}

// LeaderboardEntry is a read-time projection of a Player.
type LeaderboardEntry struct {
	PlayerID     string `json:"playerId"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
	CorrectCount int    `json:"correctCount"`
}

// PublicOption hides correctness unless the question has been revealed.
type PublicOption struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct *bool  `json:"correct,omitempty"`
}

type PublicQuestion struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	TimerSec int            `json:"timerSec"`
	Options  []PublicOption `json:"options"`
}

// LiveState is a complete snapshot of a quiz session.
type LiveState struct {
	QuizID               string             `json:"quizId"`
	Code                 string             `json:"code"`
	Status               QuizStatus         `json:"status"`
	CurrentQuestionIndex int                `json:"currentQuestionIndex"`
	Question             *PublicQuestion    `json:"question,omitempty"`
	RevealAnswers        bool               `json:"revealAnswers"`
	Deadline             *int64             `json:"deadline,omitempty"` // epoch ms
	Leaderboard          []LeaderboardEntry `json:"leaderboard"`
}

// EventType names a pushed state change.
type EventType string

const (
	EventHeartbeat   EventType = "heartbeat"
	EventQuizStarted EventType = "quiz_started"
	EventQuizStopped EventType = "quiz_stopped"
	EventQuestion    EventType = "question"
	EventLeaderboard EventType = "leaderboard"
	EventResult      EventType = "result"
)

// Event is pushed to subscribers. Every non-heartbeat event carries a full snapshot.
type Event struct {
	Type  EventType  `json:"type"`
	State *LiveState `json:"state,omitempty"`
	Now   int64      `json:"now,omitempty"`
}

// JoinResult is returned to a participant after joining by code.
type JoinResult struct {
	QuizID   string `json:"quizId"`
	PlayerID string `json:"playerId"`
	Code     string `json:"code"`
	Title    string `json:"title"`
}

// AnswerSubmission models the scoring signal from clients.
type AnswerSubmission struct {
	PlayerID   string `json:"playerId"`
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

// AnswerResult summarizes the outcome of a submission for a single player.
type AnswerResult struct {
	OK      bool `json:"ok"`
	Correct bool `json:"correct"`
	Gained  int  `json:"gained"`
}

// EpochMillis converts t to the wire timestamp format used by clients.
func EpochMillis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
