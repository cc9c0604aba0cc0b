package session

import (
	"context"
	"errors"
	"io"
	"log"
	"math/rand"
	"sync"
	"time"
)

// ErrStopped is returned by Loop helpers once the loop has exited.
var ErrStopped = errors.New("session: loop stopped")

// Default play-area size, matching the web client's game area.
const (
	DefaultAreaWidth  = 800.0
	DefaultAreaHeight = 384.0
)

// LoopConfig contains the timing and area options for a Loop.
type LoopConfig struct {
	TickInterval   time.Duration
	SpawnInterval  time.Duration
	TargetLifetime time.Duration
	AreaWidth      float64
	AreaHeight     float64
	InboxSize      int

	// Clock defaults to time.Now.
	Clock func() time.Time
	// Rand defaults to a clock-seeded source.
	Rand *rand.Rand
	// Logger defaults to discarding output.
	Logger *log.Logger
}

// DefaultLoopConfig returns the game's real-time settings.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		TickInterval:   TickInterval,
		SpawnInterval:  SpawnInterval,
		TargetLifetime: TargetLifetime,
		AreaWidth:      DefaultAreaWidth,
		AreaHeight:     DefaultAreaHeight,
		InboxSize:      256,
	}
}

func (c *LoopConfig) applyDefaults() {
	d := DefaultLoopConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.SpawnInterval <= 0 {
		c.SpawnInterval = d.SpawnInterval
	}
	if c.TargetLifetime <= 0 {
		c.TargetLifetime = d.TargetLifetime
	}
	if c.AreaWidth <= 0 {
		c.AreaWidth = d.AreaWidth
	}
	if c.AreaHeight <= 0 {
		c.AreaHeight = d.AreaHeight
	}
	if c.InboxSize <= 0 {
		c.InboxSize = d.InboxSize
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
}

// Loop runs an Engine on a single goroutine. Commands, countdown ticks,
// spawns and target expiries are all applied from Run, so they never
// interleave.
type Loop struct {
	Inbox chan any

	cfg    LoopConfig
	engine *Engine
	logger *log.Logger

	// gen increases whenever a session starts or ends; expiries from an
	// older generation are dropped.
	gen      uint64
	ticker   *time.Ticker
	spawner  *time.Ticker
	expiries map[uint64]*time.Timer

	quit     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewLoop creates a loop whose engine reports to emitter. Call Run to
// start processing.
func NewLoop(cfg LoopConfig, emitter Emitter) *Loop {
	cfg.applyDefaults()
	return &Loop{
		Inbox:    make(chan any, cfg.InboxSize),
		cfg:      cfg,
		engine:   NewEngine(emitter, cfg.Rand),
		logger:   cfg.Logger,
		expiries: make(map[uint64]*time.Timer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run processes messages until ctx is cancelled or Stop is called. Every
// pending timer is cancelled on exit.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.Stop()
	defer l.stopTimers()

	for {
		var tickC, spawnC <-chan time.Time
		if l.ticker != nil {
			tickC = l.ticker.C
		}
		if l.spawner != nil {
			spawnC = l.spawner.C
		}

		select {
		case <-ctx.Done():
			return
		case <-l.quit:
			return
		case msg := <-l.Inbox:
			l.handle(msg)
		case <-tickC:
			l.onTick()
		case <-spawnC:
			l.onSpawn()
		}
	}
}

// Stop makes Run return. It is safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
}

// Done is closed after Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) handle(msg any) {
	switch m := msg.(type) {
	case Start:
		l.stopTimers()
		l.gen++
		l.engine.Start(l.cfg.Clock())
		l.ticker = time.NewTicker(l.cfg.TickInterval)
		l.spawner = time.NewTicker(l.cfg.SpawnInterval)
		l.logger.Printf("session_started id=%s gen=%d", l.engine.sessionID, l.gen)
		reply(m.Reply, l.engine.Snapshot())
	case End:
		if l.engine.End() {
			l.finish()
		}
		reply(m.Reply, l.engine.Snapshot())
	case Hit:
		at := m.At
		if at.IsZero() {
			at = l.cfg.Clock()
		}
		hit, ok := l.engine.Hit(m.ID, at)
		if ok {
			if t, found := l.expiries[m.ID]; found {
				t.Stop()
				delete(l.expiries, m.ID)
			}
		}
		reply(m.Reply, HitResult{Scored: ok, Hit: hit, Score: l.engine.Score()})
	case Resize:
		if m.Width > 0 {
			l.cfg.AreaWidth = m.Width
		}
		if m.Height > 0 {
			l.cfg.AreaHeight = m.Height
		}
	case SnapshotRequest:
		reply(m.Reply, l.engine.Snapshot())
	case expire:
		if m.gen != l.gen {
			return
		}
		delete(l.expiries, m.id)
		l.engine.Expire(m.id)
	default:
		l.logger.Printf("unknown_message type=%T", msg)
	}
}

func (l *Loop) onTick() {
	l.engine.Tick()
	if l.engine.Status() != StatusActive {
		l.finish()
	}
}

func (l *Loop) onSpawn() {
	t, ok := l.engine.Spawn(l.cfg.AreaWidth, l.cfg.AreaHeight, l.cfg.Clock())
	if !ok {
		return
	}
	gen := l.gen
	id := t.ID
	l.expiries[id] = time.AfterFunc(l.cfg.TargetLifetime, func() {
		select {
		case l.Inbox <- expire{id: id, gen: gen}:
		case <-l.quit:
		}
	})
}

// finish tears down the timers of a session that has just ended.
func (l *Loop) finish() {
	l.stopTimers()
	l.gen++
	s := l.engine.Snapshot()
	l.logger.Printf("session_ended id=%s score=%d hits=%d best_combo=%d", s.SessionID, s.Score, s.Hits, s.BestCombo)
}

func (l *Loop) stopTimers() {
	if l.ticker != nil {
		l.ticker.Stop()
		l.ticker = nil
	}
	if l.spawner != nil {
		l.spawner.Stop()
		l.spawner = nil
	}
	for id, t := range l.expiries {
		t.Stop()
		delete(l.expiries, id)
	}
}

// StartSession starts a session and returns its initial state.
func (l *Loop) StartSession(ctx context.Context) (Snapshot, error) {
	ch := make(chan Snapshot, 1)
	if err := l.send(ctx, Start{Reply: ch}); err != nil {
		return Snapshot{}, err
	}
	return await(ctx, l, ch)
}

// EndSession ends the active session and returns the final state.
func (l *Loop) EndSession(ctx context.Context) (Snapshot, error) {
	ch := make(chan Snapshot, 1)
	if err := l.send(ctx, End{Reply: ch}); err != nil {
		return Snapshot{}, err
	}
	return await(ctx, l, ch)
}

// HitTarget reports a hit on target id at time at (zero for now).
func (l *Loop) HitTarget(ctx context.Context, id uint64, at time.Time) (HitResult, error) {
	ch := make(chan HitResult, 1)
	if err := l.send(ctx, Hit{ID: id, At: at, Reply: ch}); err != nil {
		return HitResult{}, err
	}
	return await(ctx, l, ch)
}

// Snapshot returns the current session state.
func (l *Loop) Snapshot(ctx context.Context) (Snapshot, error) {
	ch := make(chan Snapshot, 1)
	if err := l.send(ctx, SnapshotRequest{Reply: ch}); err != nil {
		return Snapshot{}, err
	}
	return await(ctx, l, ch)
}

// Resize sets the play-area size for future spawns.
func (l *Loop) Resize(ctx context.Context, width, height float64) error {
	return l.send(ctx, Resize{Width: width, Height: height})
}

func (l *Loop) send(ctx context.Context, msg any) error {
	select {
	case l.Inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrStopped
	}
}

func await[T any](ctx context.Context, l *Loop, ch <-chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-l.done:
		return zero, ErrStopped
	}
}

func reply[T any](ch chan<- T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}
