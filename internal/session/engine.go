// Package session implements one timed play round of the target game:
// the countdown, target spawning and expiry, hit scoring and combo tracking.
//
// Engine is a plain state machine and is not safe for concurrent use. Loop
// owns an Engine on a single goroutine and serialises every mutation through
// its Inbox.
package session

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Game rules.
const (
	// Duration is the length of a session in countdown ticks (seconds).
	Duration = 30
	// TargetSize is the edge length of a target in play-area pixels.
	TargetSize = 50.0
	// TargetLifetime is how long an unhit target stays in play.
	TargetLifetime = 2000 * time.Millisecond
	// SpawnInterval is the delay between two spawned targets.
	SpawnInterval = 800 * time.Millisecond
	// TickInterval is the countdown resolution.
	TickInterval = time.Second
	// ComboWindow is the maximum gap between two hits that extends a combo.
	ComboWindow = time.Second
	// MaxMultiplier caps the per-hit multiplier. The combo itself is not capped.
	MaxMultiplier = 5
	// BaseScore is the score of a hit at multiplier 1.
	BaseScore = 1
	// NFTScoreThreshold is the score that unlocks the NFT reward.
	NFTScoreThreshold = 20
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Position is a point in play-area coordinates, origin top-left.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Target is a clickable target currently in play.
type Target struct {
	ID        uint64    `json:"id"`
	Position  Position  `json:"position"`
	SpawnedAt time.Time `json:"spawnedAt"`
}

// Center returns the middle of the target, where hit effects are placed.
func (t Target) Center() Position {
	return Position{X: t.Position.X + TargetSize/2, Y: t.Position.Y + TargetSize/2}
}

// Engine holds the state of one session at a time. A new session replaces
// the previous one on Start.
type Engine struct {
	emitter Emitter
	rng     *rand.Rand

	status        Status
	sessionID     string
	score         int
	combo         int
	bestCombo     int
	hits          int
	lastHitAt     time.Time
	timeRemaining int
	startedAt     time.Time

	// targets keeps spawn order; live indexes it by id.
	targets []Target
	live    map[uint64]struct{}
	// nextID is never reset so ids stay unique across sessions of one engine.
	nextID uint64
}

// NewEngine creates an idle engine. A nil emitter discards events and a nil
// rng is seeded from the clock.
func NewEngine(emitter Emitter, rng *rand.Rand) *Engine {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		emitter:       emitter,
		rng:           rng,
		status:        StatusIdle,
		timeRemaining: Duration,
		live:          make(map[uint64]struct{}),
	}
}

// Start begins a fresh session from any status.
func (e *Engine) Start(now time.Time) {
	e.status = StatusActive
	e.sessionID = uuid.New().String()
	e.score = 0
	e.combo = 0
	e.bestCombo = 0
	e.hits = 0
	e.lastHitAt = time.Time{}
	e.timeRemaining = Duration
	e.startedAt = now
	e.targets = e.targets[:0]
	e.live = make(map[uint64]struct{})

	e.emit(Event{Type: EventSessionStarted})
}

// Tick advances the countdown by one second. It reports whether the tick
// was applied; ticks outside an active session are ignored.
func (e *Engine) Tick() bool {
	if e.status != StatusActive {
		return false
	}
	e.timeRemaining--
	e.emit(Event{Type: EventTick})
	if e.timeRemaining <= 0 {
		e.timeRemaining = 0
		e.End()
	}
	return true
}

// Spawn places a new target at a uniformly random position that keeps the
// whole target inside an area of the given size.
func (e *Engine) Spawn(areaWidth, areaHeight float64, now time.Time) (Target, bool) {
	if e.status != StatusActive {
		return Target{}, false
	}
	e.nextID++
	t := Target{
		ID: e.nextID,
		Position: Position{
			X: e.rng.Float64() * spawnRange(areaWidth),
			Y: e.rng.Float64() * spawnRange(areaHeight),
		},
		SpawnedAt: now,
	}
	e.targets = append(e.targets, t)
	e.live[t.ID] = struct{}{}

	e.emit(Event{Type: EventTargetSpawned, Target: &t})
	return t, true
}

func spawnRange(extent float64) float64 {
	if r := extent - TargetSize; r > 0 {
		return r
	}
	return 0
}

// Expire removes an unhit target whose lifetime has elapsed. A target that
// was already hit or cleared is left alone.
func (e *Engine) Expire(id uint64) bool {
	t, ok := e.remove(id)
	if !ok {
		return false
	}
	e.emit(Event{Type: EventTargetRemoved, Target: &t})
	return true
}

// Hit scores a hit on the target with the given id at time now. Hits on
// unknown ids are ignored with no state change and no event.
func (e *Engine) Hit(id uint64, now time.Time) (HitEvent, bool) {
	if e.status != StatusActive {
		return HitEvent{}, false
	}
	if _, ok := e.live[id]; !ok {
		return HitEvent{}, false
	}

	newCombo := 1
	if !e.lastHitAt.IsZero() && now.Sub(e.lastHitAt) < ComboWindow {
		newCombo = e.combo + 1
	}
	multiplier := min(newCombo, MaxMultiplier)
	gain := BaseScore * multiplier

	before := e.score
	e.score += gain
	e.combo = newCombo
	e.lastHitAt = now
	e.hits++
	if newCombo > e.bestCombo {
		e.bestCombo = newCombo
	}

	t, _ := e.remove(id)
	hit := HitEvent{
		TargetID:    id,
		Position:    t.Position,
		Center:      t.Center(),
		Combo:       newCombo,
		Multiplier:  multiplier,
		Gain:        gain,
		ScoreBefore: before,
		ScoreAfter:  e.score,
		At:          now,
	}
	e.emit(Event{Type: EventTargetHit, Target: &t, Hit: &hit})
	return hit, true
}

// End finishes the active session. The score is kept for reporting; targets
// are cleared and the combo resets. Ending a session that is not active is a
// no-op.
func (e *Engine) End() bool {
	if e.status != StatusActive {
		return false
	}
	e.status = StatusEnded
	e.targets = e.targets[:0]
	e.live = make(map[uint64]struct{})
	e.combo = 0

	res := e.result()
	e.emit(Event{Type: EventSessionEnded, Result: &res})
	return true
}

// Status returns the current lifecycle state.
func (e *Engine) Status() Status { return e.status }

// Score returns the current session score.
func (e *Engine) Score() int { return e.score }

// Combo returns the current hit streak.
func (e *Engine) Combo() int { return e.combo }

// TimeRemaining returns the countdown in seconds.
func (e *Engine) TimeRemaining() int { return e.timeRemaining }

// Has reports whether a target with the given id is in play.
func (e *Engine) Has(id uint64) bool {
	_, ok := e.live[id]
	return ok
}

// Snapshot returns a copy of the session state.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		SessionID:     e.sessionID,
		Status:        e.status,
		Score:         e.score,
		Combo:         e.combo,
		BestCombo:     e.bestCombo,
		Hits:          e.hits,
		TimeRemaining: e.timeRemaining,
		Targets:       make([]Target, len(e.targets)),
	}
	copy(s.Targets, e.targets)
	if !e.lastHitAt.IsZero() {
		at := e.lastHitAt
		s.LastHitAt = &at
	}
	if !e.startedAt.IsZero() {
		at := e.startedAt
		s.StartedAt = &at
	}
	return s
}

func (e *Engine) remove(id uint64) (Target, bool) {
	if _, ok := e.live[id]; !ok {
		return Target{}, false
	}
	delete(e.live, id)
	for i, t := range e.targets {
		if t.ID == id {
			e.targets = append(e.targets[:i], e.targets[i+1:]...)
			return t, true
		}
	}
	return Target{}, false
}

func (e *Engine) result() Result {
	return Result{
		SessionID: e.sessionID,
		Score:     e.score,
		Hits:      e.hits,
		BestCombo: e.bestCombo,
		Played:    Duration - e.timeRemaining,
	}
}

func (e *Engine) emit(ev Event) {
	ev.SessionID = e.sessionID
	ev.Status = e.status
	ev.Score = e.score
	ev.Combo = e.combo
	ev.TimeRemaining = e.timeRemaining
	e.emitter.Emit(ev)
}
