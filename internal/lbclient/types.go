package lbclient

import "github.com/scorequest/scorequest-desktop/internal/leaderboard"

// Submission is the server's answer to a score submission.
type Submission struct {
	Message        string `json:"message"`
	NewPlayer      bool   `json:"new_player"`
	NewBest        bool   `json:"new_best"`
	Score          int    `json:"score"`
	CurrentBest    int    `json:"current_best"`
	SubmittedScore int    `json:"submitted_score"`
}

// Player is a player's stats as reported by the server.
type Player struct {
	leaderboard.PlayerStats
	Badge string `json:"badge,omitempty"`
}
