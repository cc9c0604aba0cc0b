package api

import (
	"encoding/json"

	"github.com/scorequest/scorequest-desktop/internal/leaderboard"
)

// APIError is the JSON body of every error response
type APIError struct {
	Success   bool                   `json:"success"`
	Message   string                 `json:"error"`
	Type      string                 `json:"type"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e APIError) Error() string {
	return e.Message
}

// Error types
const (
	ErrTypeValidation     = "validation_error"
	ErrTypeInvalidAddress = "invalid_address"
	ErrTypeInvalidScore   = "invalid_score"
	ErrTypeUnauthorized   = "unauthorized"

	ErrTypeNotFound = "not_found"

	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory groups error types for logging
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryAuth       ErrorCategory = "auth"
	CategoryNotFound   ErrorCategory = "not_found"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidAddress, ErrTypeInvalidScore:
		return CategoryValidation
	case ErrTypeUnauthorized:
		return CategoryAuth
	case ErrTypeNotFound:
		return CategoryNotFound
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains server version information
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

// LeaderboardResponse is the public top list
type LeaderboardResponse struct {
	Success     bool                `json:"success"`
	Leaderboard []leaderboard.Entry `json:"leaderboard"`
}

// SubmitRequest is the body of a score submission. Score is kept raw so
// strings and fractions can be rejected.
type SubmitRequest struct {
	WalletAddress string          `json:"wallet_address"`
	Score         json.RawMessage `json:"score"`
}

// SubmitResponse reports the outcome of a submission
type SubmitResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	NewPlayer      bool   `json:"new_player"`
	NewBest        bool   `json:"new_best"`
	Score          int    `json:"score"`
	CurrentBest    int    `json:"current_best"`
	SubmittedScore int    `json:"submitted_score"`
}

// MintedRequest marks a player's NFT as minted
type MintedRequest struct {
	WalletAddress string `json:"wallet_address"`
}

// MessageResponse is a success body with a message only
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PlayerView is a player's stats with their display badge
type PlayerView struct {
	leaderboard.PlayerStats
	Badge string `json:"badge,omitempty"`
}

// PlayerResponse wraps a single player's stats
type PlayerResponse struct {
	Success bool       `json:"success"`
	Player  PlayerView `json:"player"`
}

// SummaryResponse wraps leaderboard aggregates
type SummaryResponse struct {
	Success bool                `json:"success"`
	Summary leaderboard.Summary `json:"summary"`
}
