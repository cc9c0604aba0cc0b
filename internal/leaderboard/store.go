// Package leaderboard persists each player's best score and NFT mint flag.
package leaderboard

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no entry exists for an address.
	ErrNotFound = errors.New("leaderboard: player not found")
	// ErrInvalidAddress is returned for addresses that are not 0x-prefixed
	// 20-byte hex strings.
	ErrInvalidAddress = errors.New("leaderboard: invalid wallet address")
	// ErrInvalidScore is returned for negative scores.
	ErrInvalidScore = errors.New("leaderboard: score must be a non-negative integer")
)

// DefaultLimit is the size of the public leaderboard.
const DefaultLimit = 10

// AddressLength is the length of a 0x-prefixed Ethereum address.
const AddressLength = 42

// Store is the leaderboard persistence interface.
type Store interface {
	// SubmitScore records score for address, keeping only the best score.
	SubmitScore(ctx context.Context, address string, score int) (SubmitResult, error)
	// Top returns up to limit entries, highest score first. Ties go to the
	// entry that reached its score first.
	Top(ctx context.Context, limit int) ([]Entry, error)
	// Player returns the stats and rank for address, or ErrNotFound.
	Player(ctx context.Context, address string) (PlayerStats, error)
	// MarkNFTMinted sets the minted flag for address, or returns ErrNotFound.
	MarkNFTMinted(ctx context.Context, address string) error
	Summary(ctx context.Context) (Summary, error)
	Ping(ctx context.Context) error
	Close() error
}

// Entry is one leaderboard row.
type Entry struct {
	Address   string `json:"address"`
	Score     int    `json:"score"`
	NFTMinted bool   `json:"nft_minted"`
}

// PlayerStats is an entry with its rank and timestamps. Rank is one more
// than the number of players with a strictly higher score.
type PlayerStats struct {
	Entry
	Rank      int       `json:"rank"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubmitResult reports what a submission changed.
type SubmitResult struct {
	Address   string `json:"address"`
	Submitted int    `json:"submitted_score"`
	Best      int    `json:"current_best"`
	NewPlayer bool   `json:"new_player"`
	NewBest   bool   `json:"new_best"`
}

// Summary aggregates the whole leaderboard.
type Summary struct {
	Players      int64           `json:"players"`
	Minted       int64           `json:"nft_minted"`
	TopScore     int             `json:"top_score"`
	AverageScore decimal.Decimal `json:"average_score"`
}

// NormalizeAddress validates a wallet address and returns it lower-cased.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if len(address) != AddressLength || !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if _, err := hex.DecodeString(address[2:]); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return "0x" + strings.ToLower(address[2:]), nil
}

// ValidScore reports whether score can be stored.
func ValidScore(score int) error {
	if score < 0 {
		return ErrInvalidScore
	}
	return nil
}

// ShortAddress abbreviates an address for display as 0x1234...abcd.
func ShortAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
