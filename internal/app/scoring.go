package app

import (
	"math"
	"time"

	"live-quiz-service/internal/domain"
)

const (
	BasePoints        = 1000
	MaxSpeedBonus     = 500
	FirstCorrectBonus = 300
)

// scoreInput is everything the scoring rule needs to know about one submission.
type scoreInput struct {
	Correct         bool
	AlreadyCredited bool
	FirstCorrect    bool
	Elapsed         time.Duration
	TimerSec        int
}

// SpeedBonus decays linearly from MaxSpeedBonus at elapsed=0 to 0 at the end of the timer.
func SpeedBonus(elapsed time.Duration, timerSec int) int {
	duration := time.Duration(max(1, timerSec)) * time.Second
	ratio := 1 - float64(elapsed)/float64(duration)
	ratio = math.Max(0, math.Min(1, ratio))
	return int(math.Round(ratio * MaxSpeedBonus))
}

// Points returns the score delta for a submission without mutating anything.
func Points(in scoreInput) int {
	if !in.Correct || in.AlreadyCredited {
		return 0
	}
	gained := BasePoints + SpeedBonus(in.Elapsed, in.TimerSec)
	if in.FirstCorrect {
		gained += FirstCorrectBonus
	}
	return gained
}

// applyScore mutates the player for a submission and returns the points gained.
// A repeated correct submission is a no-op; a wrong one only touches LastAnswerAt.
func applyScore(p *domain.Player, in scoreInput, now time.Time) int {
	if in.Correct && in.AlreadyCredited {
		return 0
	}
	gained := Points(in)
	if gained > 0 {
		p.Score += gained
		p.CorrectCount++
	}
	p.LastAnswerAt = now
	return gained
}
