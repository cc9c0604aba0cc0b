package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// sqlStore implements Store over database/sql. Queries are written with ?
// placeholders and rebound for drivers that number them.
type sqlStore struct {
	db       *sql.DB
	numbered bool
	now      func() time.Time
}

// Option configures a store.
type Option func(*sqlStore)

// WithClock sets the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *sqlStore) { s.now = now }
}

func newSQLStore(db *sql.DB, numbered bool, opts []Option) *sqlStore {
	s := &sqlStore{db: db, numbered: numbered, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *sqlStore) q(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Close() error { return s.db.Close() }

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) SubmitScore(ctx context.Context, address string, score int) (SubmitResult, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := ValidScore(score); err != nil {
		return SubmitResult{}, err
	}
	res := SubmitResult{Address: addr, Submitted: score}
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("leaderboard: begin: %w", err)
	}
	defer tx.Rollback()

	inserted, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO leaderboard (wallet_address, score, nft_minted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (wallet_address) DO NOTHING`),
		addr, score, false, now, now)
	if err != nil {
		return res, fmt.Errorf("leaderboard: insert: %w", err)
	}
	if n, _ := inserted.RowsAffected(); n == 1 {
		res.NewPlayer, res.NewBest, res.Best = true, true, score
		return res, commit(tx)
	}

	updated, err := tx.ExecContext(ctx, s.q(`
		UPDATE leaderboard SET score = ?, updated_at = ?
		WHERE wallet_address = ? AND score < ?`),
		score, now, addr, score)
	if err != nil {
		return res, fmt.Errorf("leaderboard: update: %w", err)
	}
	if n, _ := updated.RowsAffected(); n == 1 {
		res.NewBest, res.Best = true, score
		return res, commit(tx)
	}

	if err := tx.QueryRowContext(ctx, s.q(`SELECT score FROM leaderboard WHERE wallet_address = ?`), addr).
		Scan(&res.Best); err != nil {
		return res, fmt.Errorf("leaderboard: current best: %w", err)
	}
	return res, commit(tx)
}

func commit(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("leaderboard: commit: %w", err)
	}
	return nil
}

func (s *sqlStore) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT wallet_address, score, nft_minted
		FROM leaderboard
		ORDER BY score DESC, updated_at ASC, id ASC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: top: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Address, &e.Score, &e.NFTMinted); err != nil {
			return nil, fmt.Errorf("leaderboard: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *sqlStore) Player(ctx context.Context, address string) (PlayerStats, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return PlayerStats{}, err
	}

	var p PlayerStats
	err = s.db.QueryRowContext(ctx, s.q(`
		SELECT wallet_address, score, nft_minted, created_at, updated_at
		FROM leaderboard WHERE wallet_address = ?`), addr).
		Scan(&p.Address, &p.Score, &p.NFTMinted, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PlayerStats{}, ErrNotFound
	}
	if err != nil {
		return PlayerStats{}, fmt.Errorf("leaderboard: player: %w", err)
	}

	var higher int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM leaderboard WHERE score > ?`), p.Score).
		Scan(&higher); err != nil {
		return PlayerStats{}, fmt.Errorf("leaderboard: rank: %w", err)
	}
	p.Rank = higher + 1
	return p, nil
}

func (s *sqlStore) MarkNFTMinted(ctx context.Context, address string) error {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	// updated_at is left alone: it orders tied scores by when they were reached.
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE leaderboard SET nft_minted = ? WHERE wallet_address = ?`),
		true, addr)
	if err != nil {
		return fmt.Errorf("leaderboard: mark minted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) Summary(ctx context.Context) (Summary, error) {
	var (
		sum     Summary
		minted  sql.NullInt64
		top     sql.NullInt64
		total   sql.NullInt64
		players int64
	)
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*),
		       SUM(CASE WHEN nft_minted THEN 1 ELSE 0 END),
		       MAX(score),
		       SUM(score)
		FROM leaderboard`)).
		Scan(&players, &minted, &top, &total)
	if err != nil {
		return Summary{}, fmt.Errorf("leaderboard: summary: %w", err)
	}

	sum.Players = players
	sum.Minted = minted.Int64
	sum.TopScore = int(top.Int64)
	sum.AverageScore = decimal.Zero
	if players > 0 {
		sum.AverageScore = decimal.NewFromInt(total.Int64).
			Div(decimal.NewFromInt(players)).
			Round(2)
	}
	return sum, nil
}
