package room

import (
	"cmp"
	"slices"
)

const maxLeaderboardEntries = 50

// LeaderboardEntry is a finished game as recorded by a client.
type LeaderboardEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Score       int    `json:"score"`
	TimeSeconds int    `json:"timeSeconds"`
	Strikes     int    `json:"strikes"`
	Difficulty  string `json:"difficulty"`
	Date        string `json:"date"`
}

// mergeLeaderboard unions entries by id, keeps the best score first and caps the list.
// Entries without an id are ignored. On a duplicate id the existing entry wins.
func mergeLeaderboard(current, incoming []LeaderboardEntry) []LeaderboardEntry {
	seen := make(map[string]bool, len(current)+len(incoming))
	merged := make([]LeaderboardEntry, 0, len(current)+len(incoming))
	for _, list := range [][]LeaderboardEntry{current, incoming} {
		for _, e := range list {
			if e.ID == "" || seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			merged = append(merged, e)
		}
	}
	slices.SortStableFunc(merged, func(a, b LeaderboardEntry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.TimeSeconds, b.TimeSeconds)
	})
	if len(merged) > maxLeaderboardEntries {
		merged = merged[:maxLeaderboardEntries]
	}
	return merged
}
