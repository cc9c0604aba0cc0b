package leaderboard

// Badge returns the display badge for a player. Podium and top-ten ranks
// take priority over score tiers; an empty string means no badge.
func Badge(rank, score int) string {
	switch {
	case rank == 1:
		return "Champion"
	case rank == 2:
		return "Runner-up"
	case rank == 3:
		return "Third Place"
	case rank > 3 && rank <= 10:
		return "Top 10"
	}
	return ScoreBadge(score)
}

// ScoreBadge returns the tier label for a score.
func ScoreBadge(score int) string {
	switch {
	case score >= 100:
		return "Legend"
	case score >= 50:
		return "Expert"
	case score >= 20:
		return "Skilled"
	case score >= 10:
		return "Rising"
	}
	return ""
}

// Ranks returns the rank of each entry in a Top result. Tied scores share a
// rank and the next distinct score skips ahead, matching PlayerStats.Rank.
// entries must be ordered by score descending.
func Ranks(entries []Entry) []int {
	ranks := make([]int, len(entries))
	for i, e := range entries {
		if i > 0 && e.Score == entries[i-1].Score {
			ranks[i] = ranks[i-1]
			continue
		}
		ranks[i] = i + 1
	}
	return ranks
}
