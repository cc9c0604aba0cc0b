package leaderboard

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
	carol = "0x3333333333333333333333333333333333333333"
)

// stepClock advances one second per call so updated_at is strictly ordered.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T) Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leaderboard.db")
	s, err := OpenSQLite(context.Background(), path, nil, WithClock(stepClock()))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSubmitScoreKeepsBest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.SubmitScore(ctx, alice, 12)
	if err != nil {
		t.Fatalf("SubmitScore: %v", err)
	}
	if !res.NewPlayer || !res.NewBest || res.Best != 12 {
		t.Errorf("Expected new player with best 12, got %+v", res)
	}

	res, err = s.SubmitScore(ctx, alice, 8)
	if err != nil {
		t.Fatalf("SubmitScore: %v", err)
	}
	if res.NewPlayer || res.NewBest || res.Best != 12 || res.Submitted != 8 {
		t.Errorf("Expected lower score to be ignored, got %+v", res)
	}

	res, err = s.SubmitScore(ctx, alice, 12)
	if err != nil {
		t.Fatalf("SubmitScore: %v", err)
	}
	if res.NewBest {
		t.Error("Expected equal score not to count as a new best")
	}

	res, err = s.SubmitScore(ctx, alice, 30)
	if err != nil {
		t.Fatalf("SubmitScore: %v", err)
	}
	if res.NewPlayer || !res.NewBest || res.Best != 30 {
		t.Errorf("Expected new best 30, got %+v", res)
	}

	p, err := s.Player(ctx, alice)
	if err != nil {
		t.Fatalf("Player: %v", err)
	}
	if p.Score != 30 {
		t.Errorf("Expected stored score 30, got %d", p.Score)
	}
	if !p.UpdatedAt.After(p.CreatedAt) {
		t.Errorf("Expected updated_at after created_at, got %v / %v", p.UpdatedAt, p.CreatedAt)
	}
}

func TestSubmitScoreValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		address string
		score   int
		want    error
	}{
		{"missing prefix", "1111111111111111111111111111111111111111", 5, ErrInvalidAddress},
		{"too short", "0x1234", 5, ErrInvalidAddress},
		{"not hex", "0xzz11111111111111111111111111111111111111", 5, ErrInvalidAddress},
		{"negative score", alice, -1, ErrInvalidScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.SubmitScore(ctx, tt.address, tt.score); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAddressesAreCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mixed := "0xABCDEFabcdef1111111111111111111111111111"
	if _, err := s.SubmitScore(ctx, mixed, 5); err != nil {
		t.Fatalf("SubmitScore: %v", err)
	}
	res, err := s.SubmitScore(ctx, strings.ToLower(mixed), 3)
	if err != nil {
		t.Fatalf("SubmitScore: %v", err)
	}
	if res.NewPlayer {
		t.Error("Expected lower-cased address to match the existing player")
	}
	if res.Address != strings.ToLower(mixed) {
		t.Errorf("Expected normalised address, got %s", res.Address)
	}
}

func TestTopOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SubmitScore(ctx, alice, 10)
	s.SubmitScore(ctx, bob, 25)
	s.SubmitScore(ctx, carol, 10)

	top, err := s.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	want := []string{bob, alice, carol}
	if len(top) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(top))
	}
	for i, addr := range want {
		if top[i].Address != addr {
			t.Errorf("position %d: expected %s, got %s", i, addr, top[i].Address)
		}
	}

	limited, err := s.Top(ctx, 2)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(limited))
	}
}

func TestTopDefaultLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		addr := "0x" + strings.Repeat(string("0123456789ab"[i]), 40)
		if _, err := s.SubmitScore(ctx, addr, i); err != nil {
			t.Fatalf("SubmitScore: %v", err)
		}
	}
	top, err := s.Top(ctx, 0)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != DefaultLimit {
		t.Errorf("Expected %d entries, got %d", DefaultLimit, len(top))
	}
	if top[0].Score != 11 {
		t.Errorf("Expected top score 11, got %d", top[0].Score)
	}
}

func TestPlayerRank(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SubmitScore(ctx, alice, 10)
	s.SubmitScore(ctx, bob, 25)
	s.SubmitScore(ctx, carol, 10)

	tests := []struct {
		address string
		rank    int
	}{
		{bob, 1},
		{alice, 2},
		{carol, 2},
	}
	for _, tt := range tests {
		p, err := s.Player(ctx, tt.address)
		if err != nil {
			t.Fatalf("Player(%s): %v", tt.address, err)
		}
		if p.Rank != tt.rank {
			t.Errorf("Player(%s) rank = %d, want %d", tt.address, p.Rank, tt.rank)
		}
	}

	if _, err := s.Player(ctx, "0x4444444444444444444444444444444444444444"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMarkNFTMinted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.MarkNFTMinted(ctx, alice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for unknown player, got %v", err)
	}

	s.SubmitScore(ctx, alice, 21)
	if err := s.MarkNFTMinted(ctx, alice); err != nil {
		t.Fatalf("MarkNFTMinted: %v", err)
	}
	p, err := s.Player(ctx, alice)
	if err != nil {
		t.Fatalf("Player: %v", err)
	}
	if !p.NFTMinted {
		t.Error("Expected minted flag to be set")
	}

	// Marking twice is harmless.
	if err := s.MarkNFTMinted(ctx, alice); err != nil {
		t.Errorf("MarkNFTMinted again: %v", err)
	}
}

func TestMintKeepsTieOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SubmitScore(ctx, alice, 20)
	s.SubmitScore(ctx, bob, 20)
	before, err := s.Player(ctx, alice)
	if err != nil {
		t.Fatalf("Player: %v", err)
	}

	if err := s.MarkNFTMinted(ctx, alice); err != nil {
		t.Fatalf("MarkNFTMinted: %v", err)
	}

	top, err := s.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 2 || top[0].Address != alice || !top[0].NFTMinted {
		t.Errorf("Expected minted alice to stay ahead of bob, got %+v", top)
	}

	after, err := s.Player(ctx, alice)
	if err != nil {
		t.Fatalf("Player: %v", err)
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("Expected updated_at unchanged by mint, got %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
}

func TestSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if empty.Players != 0 || !empty.AverageScore.IsZero() {
		t.Errorf("Expected empty summary, got %+v", empty)
	}

	s.SubmitScore(ctx, alice, 10)
	s.SubmitScore(ctx, bob, 25)
	s.SubmitScore(ctx, carol, 20)
	s.MarkNFTMinted(ctx, bob)

	sum, err := s.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Players != 3 || sum.Minted != 1 || sum.TopScore != 25 {
		t.Errorf("Unexpected summary: %+v", sum)
	}
	if got := sum.AverageScore.String(); got != "18.33" {
		t.Errorf("Expected average 18.33, got %s", got)
	}
}

func TestConcurrentSubmits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			if _, err := s.SubmitScore(ctx, alice, score); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("SubmitScore: %v", err)
	}

	p, err := s.Player(ctx, alice)
	if err != nil {
		t.Fatalf("Player: %v", err)
	}
	if p.Score != 20 {
		t.Errorf("Expected best 20 after concurrent submits, got %d", p.Score)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaderboard.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path, nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	s.SubmitScore(ctx, alice, 7)
	s.Close()

	s, err = OpenSQLite(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	p, err := s.Player(ctx, alice)
	if err != nil {
		t.Fatalf("Player: %v", err)
	}
	if p.Score != 7 {
		t.Errorf("Expected 7 after reopen, got %d", p.Score)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "", nil); err == nil {
		t.Error("Expected error for unknown driver")
	}
}
