package app

import (
	"sort"

	"live-quiz-service/internal/domain"
)

// rankPlayers orders players by score desc, correct count desc, last answer asc.
// Player id breaks remaining ties so the result never depends on map order.
func rankPlayers(players map[string]*domain.Player) []domain.LeaderboardEntry {
	ordered := make([]*domain.Player, 0, len(players))
	for _, p := range players {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return playerLess(ordered[i], ordered[j])
	})

	entries := make([]domain.LeaderboardEntry, 0, len(ordered))
	for _, p := range ordered {
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID:     p.ID,
			Name:         p.Name,
			Score:        p.Score,
			CorrectCount: p.CorrectCount,
		})
	}
	return entries
}

func playerLess(a, b *domain.Player) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.CorrectCount != b.CorrectCount {
		return a.CorrectCount > b.CorrectCount
	}
	if !a.LastAnswerAt.Equal(b.LastAnswerAt) {
		return a.LastAnswerAt.Before(b.LastAnswerAt)
	}
	return a.ID < b.ID
}
