package session

import "time"

// EventType names a session state change.
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventTick           EventType = "tick"
	EventTargetSpawned  EventType = "target_spawned"
	EventTargetRemoved  EventType = "target_removed"
	EventTargetHit      EventType = "target_hit"
	EventSessionEnded   EventType = "session_ended"
)

// Event is a session update for renderers, audio and score submission.
// Score, Combo and TimeRemaining are the values after the change.
type Event struct {
	Type          EventType `json:"type"`
	SessionID     string    `json:"sessionId"`
	Status        Status    `json:"status"`
	Score         int       `json:"score"`
	Combo         int       `json:"combo"`
	TimeRemaining int       `json:"timeRemaining"`
	Target        *Target   `json:"target,omitempty"`
	Hit           *HitEvent `json:"hit,omitempty"`
	Result        *Result   `json:"result,omitempty"`
}

// HitEvent describes one scored hit.
type HitEvent struct {
	TargetID    uint64    `json:"targetId"`
	Position    Position  `json:"position"`
	Center      Position  `json:"center"`
	Combo       int       `json:"combo"`
	Multiplier  int       `json:"multiplier"`
	Gain        int       `json:"gain"`
	ScoreBefore int       `json:"scoreBefore"`
	ScoreAfter  int       `json:"scoreAfter"`
	At          time.Time `json:"at"`
}

// Crossed reports whether this hit moved the score from below threshold to
// at or above it.
func (h HitEvent) Crossed(threshold int) bool {
	return h.ScoreBefore < threshold && h.ScoreAfter >= threshold
}

// Result is the outcome of a finished session.
type Result struct {
	SessionID string `json:"sessionId"`
	Score     int    `json:"score"`
	Hits      int    `json:"hits"`
	BestCombo int    `json:"bestCombo"`
	// Played is the number of countdown seconds that elapsed.
	Played int `json:"played"`
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	SessionID     string     `json:"sessionId"`
	Status        Status     `json:"status"`
	Score         int        `json:"score"`
	Combo         int        `json:"combo"`
	BestCombo     int        `json:"bestCombo"`
	Hits          int        `json:"hits"`
	TimeRemaining int        `json:"timeRemaining"`
	LastHitAt     *time.Time `json:"lastHitAt,omitempty"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	Targets       []Target   `json:"targets"`
}

// Emitter receives session events. Emit is called on the goroutine that
// owns the engine and must not block or call back into the Loop and wait.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f(ev).
func (f EmitterFunc) Emit(ev Event) { f(ev) }

// Emitters fans an event out to every emitter in order.
type Emitters []Emitter

// Emit forwards ev to each emitter.
func (m Emitters) Emit(ev Event) {
	for _, em := range m {
		if em != nil {
			em.Emit(ev)
		}
	}
}

// NopEmitter discards events.
type NopEmitter struct{}

// Emit does nothing.
func (NopEmitter) Emit(Event) {}
