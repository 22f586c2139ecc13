package contest

import (
	"sort"
	"tle_zone_contest/internal/domain/model"
)

// BuildStandings ranks every participant by total score. Participants with no
// results score zero. Equal scores share the better rank (1, 2, 2, 4); within
// a tie, entries are listed by total runtime then user id.
func BuildStandings(participants []string, results []model.ProblemResult) []model.StandingsEntry {
	byUser := make(map[string]*model.StandingsEntry, len(participants))
	order := make([]string, 0, len(participants))
	add := func(userID string) *model.StandingsEntry {
		if e, ok := byUser[userID]; ok {
			return e
		}
		e := &model.StandingsEntry{UserID: userID}
		byUser[userID] = e
		order = append(order, userID)
		return e
	}

	for _, id := range participants {
		add(id)
	}
	for _, r := range results {
		e := add(r.UserID)
		e.TotalScore += r.MarksAwarded
		e.TotalRuntimeMs += r.RuntimeMs
		if r.Status == model.StatusAccepted {
			e.ProblemsSolved++
		}
	}

	entries := make([]model.StandingsEntry, 0, len(order))
	for _, id := range order {
		entries = append(entries, *byUser[id])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.TotalRuntimeMs != b.TotalRuntimeMs {
			return a.TotalRuntimeMs < b.TotalRuntimeMs
		}
		return a.UserID < b.UserID
	})

	for i := range entries {
		if i > 0 && entries[i].TotalScore == entries[i-1].TotalScore {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
	return entries
}

// RankOf returns the entry for userID, or false when the user did not take part.
func RankOf(standings []model.StandingsEntry, userID string) (model.StandingsEntry, bool) {
	for _, e := range standings {
		if e.UserID == userID {
			return e, true
		}
	}
	return model.StandingsEntry{}, false
}
