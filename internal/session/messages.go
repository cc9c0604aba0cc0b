package session

import "time"

// Start begins a new session, replacing any session in progress.
type Start struct {
	Reply chan<- Snapshot
}

// End finishes the active session early.
type End struct {
	Reply chan<- Snapshot
}

// Hit is a pointer hit on a target. A zero At means the loop clock's now.
type Hit struct {
	ID    uint64
	At    time.Time
	Reply chan<- HitResult
}

// HitResult answers a Hit. Scored is false when the target was already gone.
type HitResult struct {
	Scored bool     `json:"scored"`
	Hit    HitEvent `json:"hit"`
	Score  int      `json:"score"`
}

// Resize updates the play-area size used for new targets.
type Resize struct {
	Width  float64
	Height float64
}

// SnapshotRequest asks for a copy of the session state.
type SnapshotRequest struct {
	Reply chan<- Snapshot
}

// expire is posted by a target's expiry timer. gen ties it to the session
// that spawned the target.
type expire struct {
	id  uint64
	gen uint64
}
