// Package bindings exposes the game session and the leaderboard to the Wails
// frontend.
package bindings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/scorequest/scorequest-desktop/internal/cues"
	"github.com/scorequest/scorequest-desktop/internal/lbclient"
	"github.com/scorequest/scorequest-desktop/internal/leaderboard"
	"github.com/scorequest/scorequest-desktop/internal/session"
)

// NFTThreshold is the score that unlocks minting.
const NFTThreshold = 20

// ErrNotStarted is returned by bound methods called before Startup.
var ErrNotStarted = errors.New("bindings: game module not started")

// ErrNoWallet is returned when an operation needs a connected wallet.
var ErrNoWallet = errors.New("bindings: wallet not connected")

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// LeaderboardClient is the subset of lbclient.Client the module uses.
type LeaderboardClient interface {
	SubmitScore(ctx context.Context, address string, score int) (*lbclient.Submission, error)
	Leaderboard(ctx context.Context, limit int) ([]leaderboard.Entry, error)
	PlayerStats(ctx context.Context, address string) (*lbclient.Player, error)
	MarkNFTMinted(ctx context.Context, address string) error
	SetSubmitToken(token string)
}

// TokenStore persists the submit token between runs.
type TokenStore interface {
	SetSubmitToken(server, token string) error
}

// WalletState describes the connected wallet.
type WalletState struct {
	Address   string           `json:"address"`
	Short     string           `json:"short"`
	Connected bool             `json:"connected"`
	Player    *lbclient.Player `json:"player,omitempty"`
	CanMint   bool             `json:"canMint"`
}

// Option configures a GameModule.
type Option func(*GameModule)

// WithEventSink replaces the Wails event sink. Used by tests and headless
// runs.
func WithEventSink(s EventSink) Option {
	return func(m *GameModule) { m.sink = s }
}

// WithLoopConfig overrides the session timings.
func WithLoopConfig(cfg session.LoopConfig) Option {
	return func(m *GameModule) { m.loopConfig = cfg }
}

// WithLogger sets the module logger.
func WithLogger(l *log.Logger) Option {
	return func(m *GameModule) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTokenStore persists tokens set through SetSubmitToken under server.
func WithTokenStore(ts TokenStore, server string) Option {
	return func(m *GameModule) {
		m.tokens = ts
		m.tokenServer = server
	}
}

// WithSubmitTimeout bounds each background leaderboard refresh.
func WithSubmitTimeout(d time.Duration) Option {
	return func(m *GameModule) {
		if d > 0 {
			m.submitTimeout = d
		}
	}
}

// GameModule is the Wails-bound game service. Session state lives in the
// session loop; the module only keeps wallet and leaderboard state.
type GameModule struct {
	client        LeaderboardClient
	tokens        TokenStore
	tokenServer   string
	logger        *log.Logger
	loopConfig    session.LoopConfig
	submitTimeout time.Duration

	loop *session.Loop
	wg   sync.WaitGroup

	mu           sync.RWMutex
	ctx          context.Context
	sink         EventSink
	wallet       string
	stats        *lbclient.Player
	sessionScore int
}

// NewGameModule constructs the module. Call Startup from the Wails OnStartup
// hook before any bound method.
func NewGameModule(client LeaderboardClient, opts ...Option) *GameModule {
	m := &GameModule{
		client:        client,
		logger:        log.New(io.Discard, "", 0),
		loopConfig:    session.DefaultLoopConfig(),
		submitTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.loopConfig.Logger == nil {
		m.loopConfig.Logger = m.logger
	}

	emitter := session.Emitters{
		webviewEmitter{m: m},
		cues.NewBridge(m.cuePlayer(), m.logger),
		session.EmitterFunc(m.onSessionEvent),
	}
	m.loop = session.NewLoop(m.loopConfig, emitter)
	return m
}

// Startup binds the module to the application context and starts the
// session loop.
func (m *GameModule) Startup(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	if m.sink == nil {
		m.sink = NewWailsSink(ctx)
	}
	m.mu.Unlock()

	go m.loop.Run(ctx)
	m.logger.Printf("game_module_started area=%.0fx%.0f", m.loopConfig.AreaWidth, m.loopConfig.AreaHeight)
}

// Shutdown stops the loop and waits for background submissions.
func (m *GameModule) Shutdown(ctx context.Context) error {
	m.loop.Stop()
	_, err := m.context()
	started := err == nil

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		if started {
			<-m.loop.Done()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *GameModule) context() (context.Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ctx == nil {
		return nil, ErrNotStarted
	}
	return m.ctx, nil
}

func (m *GameModule) emit(name string, data any) {
	m.mu.RLock()
	sink := m.sink
	m.mu.RUnlock()
	if sink != nil {
		sink.Emit(name, data)
	}
}

// ------------- Wails binding methods (UI calls) -------------

// StartGame begins a new session.
func (m *GameModule) StartGame() (session.Snapshot, error) {
	ctx, err := m.context()
	if err != nil {
		return session.Snapshot{}, err
	}
	return m.loop.StartSession(ctx)
}

// EndGame finishes the active session early.
func (m *GameModule) EndGame() (session.Snapshot, error) {
	ctx, err := m.context()
	if err != nil {
		return session.Snapshot{}, err
	}
	return m.loop.EndSession(ctx)
}

// HitTarget records a click on target id.
func (m *GameModule) HitTarget(id uint64) (session.HitResult, error) {
	ctx, err := m.context()
	if err != nil {
		return session.HitResult{}, err
	}
	return m.loop.HitTarget(ctx, id, time.Time{})
}

// ResizeArea sets the play-area size in pixels.
func (m *GameModule) ResizeArea(width, height float64) error {
	ctx, err := m.context()
	if err != nil {
		return err
	}
	return m.loop.Resize(ctx, width, height)
}

// Snapshot returns the current session state.
func (m *GameModule) Snapshot() (session.Snapshot, error) {
	ctx, err := m.context()
	if err != nil {
		return session.Snapshot{}, err
	}
	return m.loop.Snapshot(ctx)
}

// ConnectWallet sets the player's wallet and loads their stored stats. An
// address with no leaderboard entry is not an error.
func (m *GameModule) ConnectWallet(address string) (WalletState, error) {
	ctx, err := m.context()
	if err != nil {
		return WalletState{}, err
	}
	addr, err := leaderboard.NormalizeAddress(address)
	if err != nil {
		return WalletState{}, err
	}

	m.mu.Lock()
	m.wallet = addr
	m.stats = nil
	m.mu.Unlock()

	if _, err := m.refreshPlayer(ctx, addr); err != nil {
		m.logger.Printf("player_lookup_failed address=%s error=%v", leaderboard.ShortAddress(addr), err)
	}

	state := m.walletState()
	m.emit(EventWalletChanged, state)
	m.logger.Printf("wallet_connected address=%s", state.Short)
	return state, nil
}

// DisconnectWallet forgets the wallet.
func (m *GameModule) DisconnectWallet() WalletState {
	m.mu.Lock()
	m.wallet = ""
	m.stats = nil
	m.mu.Unlock()

	state := m.walletState()
	m.emit(EventWalletChanged, state)
	return state
}

// Wallet returns the wallet state.
func (m *GameModule) Wallet() WalletState {
	return m.walletState()
}

// CanMint reports whether the connected wallet may mint the reward NFT.
func (m *GameModule) CanMint() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.canMintLocked()
}

func (m *GameModule) canMintLocked() bool {
	if m.wallet == "" {
		return false
	}
	best := m.sessionScore
	if m.stats != nil {
		if m.stats.NFTMinted {
			return false
		}
		if m.stats.Score > best {
			best = m.stats.Score
		}
	}
	return best >= NFTThreshold
}

// ConfirmMint records a completed mint transaction for the connected wallet.
func (m *GameModule) ConfirmMint(txHash string) (WalletState, error) {
	ctx, err := m.context()
	if err != nil {
		return WalletState{}, err
	}
	if !txHashPattern.MatchString(strings.TrimSpace(txHash)) {
		return WalletState{}, fmt.Errorf("bindings: invalid transaction hash")
	}

	m.mu.RLock()
	addr := m.wallet
	allowed := m.canMintLocked()
	m.mu.RUnlock()
	if addr == "" {
		return WalletState{}, ErrNoWallet
	}
	if !allowed {
		return WalletState{}, fmt.Errorf("bindings: wallet is not eligible to mint")
	}

	if err := m.client.MarkNFTMinted(ctx, addr); err != nil {
		return WalletState{}, fmt.Errorf("bindings: mark minted: %w", err)
	}
	if _, err := m.refreshPlayer(ctx, addr); err != nil {
		m.logger.Printf("player_lookup_failed address=%s error=%v", leaderboard.ShortAddress(addr), err)
	}

	state := m.walletState()
	m.emit(EventNFTMinted, map[string]any{"address": addr, "txHash": strings.TrimSpace(txHash)})
	m.logger.Printf("nft_minted address=%s", state.Short)
	return state, nil
}

// Leaderboard returns the top scores.
func (m *GameModule) Leaderboard() ([]leaderboard.Entry, error) {
	ctx, err := m.context()
	if err != nil {
		return nil, err
	}
	return m.client.Leaderboard(ctx, leaderboard.DefaultLimit)
}

// PlayerStats returns the connected wallet's stored stats, or nil when the
// wallet has no entry yet.
func (m *GameModule) PlayerStats() (*lbclient.Player, error) {
	ctx, err := m.context()
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	addr := m.wallet
	m.mu.RUnlock()
	if addr == "" {
		return nil, ErrNoWallet
	}
	return m.refreshPlayer(ctx, addr)
}

// SetSubmitToken updates the leaderboard write token and stores it when a
// token store is configured.
func (m *GameModule) SetSubmitToken(token string) error {
	token = strings.TrimSpace(token)
	if m.tokens != nil {
		if err := m.tokens.SetSubmitToken(m.tokenServer, token); err != nil {
			return fmt.Errorf("bindings: store submit token: %w", err)
		}
	}
	m.client.SetSubmitToken(token)
	return nil
}

// -------------------------------------------------------------

func (m *GameModule) walletState() WalletState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return WalletState{
		Address:   m.wallet,
		Short:     leaderboard.ShortAddress(m.wallet),
		Connected: m.wallet != "",
		Player:    m.stats,
		CanMint:   m.canMintLocked(),
	}
}

// refreshPlayer reloads stats for addr and caches them if addr is still the
// connected wallet.
func (m *GameModule) refreshPlayer(ctx context.Context, addr string) (*lbclient.Player, error) {
	p, err := m.client.PlayerStats(ctx, addr)
	if lbclient.IsNotFound(err) {
		p, err = nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.wallet == addr {
		m.stats = p
	}
	m.mu.Unlock()
	return p, nil
}

// onSessionEvent runs on the loop goroutine and must not block.
func (m *GameModule) onSessionEvent(ev session.Event) {
	m.mu.Lock()
	m.sessionScore = ev.Score
	addr := m.wallet
	m.mu.Unlock()

	if ev.Type != session.EventSessionEnded || ev.Result == nil {
		return
	}
	res := *ev.Result
	m.logger.Printf("session_ended session=%s score=%d hits=%d best_combo=%d", res.SessionID, res.Score, res.Hits, res.BestCombo)
	if addr == "" || res.Score <= 0 {
		return
	}

	m.wg.Add(1)
	go m.submit(addr, res)
}

func (m *GameModule) submit(addr string, res session.Result) {
	defer m.wg.Done()

	base, err := m.context()
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(base, m.submitTimeout)
	defer cancel()

	sub, err := m.client.SubmitScore(ctx, addr, res.Score)
	if err != nil {
		m.logger.Printf("score_submit_failed address=%s score=%d error=%v", leaderboard.ShortAddress(addr), res.Score, err)
		m.emit(EventLeaderboardError, ErrorPayload{Op: "submit", Error: err.Error()})
		return
	}
	m.logger.Printf("score_submitted address=%s score=%d new_best=%t", leaderboard.ShortAddress(addr), res.Score, sub.NewBest)

	update := LeaderboardUpdate{Submission: sub}
	if update.Leaderboard, err = m.client.Leaderboard(ctx, leaderboard.DefaultLimit); err != nil {
		m.logger.Printf("leaderboard_refresh_failed error=%v", err)
		m.emit(EventLeaderboardError, ErrorPayload{Op: "leaderboard", Error: err.Error()})
		return
	}
	if update.Player, err = m.refreshPlayer(ctx, addr); err != nil {
		m.logger.Printf("player_lookup_failed address=%s error=%v", leaderboard.ShortAddress(addr), err)
	}
	m.emit(EventLeaderboardUpdated, update)
}
