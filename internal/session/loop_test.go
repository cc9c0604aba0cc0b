package session

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

// chanEmitter forwards events to a buffered channel without blocking the loop.
type chanEmitter chan Event

func (c chanEmitter) Emit(ev Event) {
	select {
	case c <- ev:
	default:
	}
}

func waitFor(t *testing.T, events <-chan Event, timeout time.Duration, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-events:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event")
			return Event{}
		}
	}
}

func ofType(typ EventType) func(Event) bool {
	return func(ev Event) bool { return ev.Type == typ }
}

func startLoop(t *testing.T, cfg LoopConfig) (*Loop, chanEmitter) {
	t.Helper()
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(7))
	}
	events := make(chanEmitter, 4096)
	l := NewLoop(cfg, events)

	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, events
}

func TestLoopSessionEndsAfterCountdown(t *testing.T) {
	l, events := startLoop(t, LoopConfig{
		TickInterval:  time.Millisecond,
		SpawnInterval: time.Hour,
	})

	ctx := context.Background()
	snap, err := l.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if snap.Status != StatusActive || snap.TimeRemaining != Duration {
		t.Fatalf("Unexpected start snapshot: %+v", snap)
	}

	ended := waitFor(t, events, 2*time.Second, ofType(EventSessionEnded))
	if ended.Result == nil || ended.Result.Played != Duration {
		t.Errorf("Expected full session result, got %+v", ended.Result)
	}

	snap, err = l.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status != StatusEnded || snap.TimeRemaining != 0 {
		t.Errorf("Expected ended with 0 remaining, got %s/%d", snap.Status, snap.TimeRemaining)
	}

	// No stray ticks or a second end event once the countdown has stopped.
	time.Sleep(20 * time.Millisecond)
	for {
		select {
		case ev := <-events:
			if ev.Type == EventTick || ev.Type == EventSessionEnded {
				t.Fatalf("unexpected %s event after end", ev.Type)
			}
			continue
		default:
		}
		break
	}
}

func TestLoopTargetsExpire(t *testing.T) {
	l, events := startLoop(t, LoopConfig{
		TickInterval:   time.Hour,
		SpawnInterval:  5 * time.Millisecond,
		TargetLifetime: 15 * time.Millisecond,
	})

	if _, err := l.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	spawned := waitFor(t, events, time.Second, ofType(EventTargetSpawned))
	removed := waitFor(t, events, time.Second, func(ev Event) bool {
		return ev.Type == EventTargetRemoved && ev.Target.ID == spawned.Target.ID
	})
	if removed.Score != 0 {
		t.Errorf("Expected expiry to leave score at 0, got %d", removed.Score)
	}
}

func TestLoopHitCancelsExpiry(t *testing.T) {
	l, events := startLoop(t, LoopConfig{
		TickInterval:   time.Hour,
		SpawnInterval:  10 * time.Millisecond,
		TargetLifetime: 40 * time.Millisecond,
	})

	ctx := context.Background()
	if _, err := l.StartSession(ctx); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	spawned := waitFor(t, events, time.Second, ofType(EventTargetSpawned))
	id := spawned.Target.ID

	res, err := l.HitTarget(ctx, id, time.Time{})
	if err != nil {
		t.Fatalf("HitTarget: %v", err)
	}
	if !res.Scored || res.Score != 1 {
		t.Fatalf("Expected scored hit with score 1, got %+v", res)
	}

	deadline := time.After(120 * time.Millisecond)
	for {
		select {
		case ev := <-events:
			if ev.Type == EventTargetRemoved && ev.Target.ID == id {
				t.Fatalf("hit target %d was expired afterwards", id)
			}
			continue
		case <-deadline:
		}
		break
	}

	res, err = l.HitTarget(ctx, id, time.Time{})
	if err != nil {
		t.Fatalf("HitTarget: %v", err)
	}
	if res.Scored {
		t.Error("Expected repeat hit to be ignored")
	}
}

func TestLoopIgnoresStaleExpiry(t *testing.T) {
	l, events := startLoop(t, LoopConfig{
		TickInterval:   time.Hour,
		SpawnInterval:  5 * time.Millisecond,
		TargetLifetime: time.Hour,
	})

	ctx := context.Background()
	if _, err := l.StartSession(ctx); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	spawned := waitFor(t, events, time.Second, ofType(EventTargetSpawned))
	id := spawned.Target.ID

	// An expiry from before this session started.
	l.Inbox <- expire{id: id, gen: 0}

	snap, err := l.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	found := false
	for _, tg := range snap.Targets {
		if tg.ID == id {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected target %d to survive a stale expiry", id)
	}
}

func TestLoopRestartReplacesSession(t *testing.T) {
	l, events := startLoop(t, LoopConfig{
		TickInterval:   time.Hour,
		SpawnInterval:  5 * time.Millisecond,
		TargetLifetime: time.Hour,
	})

	ctx := context.Background()
	first, err := l.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	spawned := waitFor(t, events, time.Second, ofType(EventTargetSpawned))
	if _, err := l.HitTarget(ctx, spawned.Target.ID, time.Time{}); err != nil {
		t.Fatalf("HitTarget: %v", err)
	}

	second, err := l.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Error("Expected a new session id on restart")
	}
	if second.Score != 0 || len(second.Targets) != 0 {
		t.Errorf("Expected a clean session, got score=%d targets=%d", second.Score, len(second.Targets))
	}
}

func TestLoopEndSession(t *testing.T) {
	l, events := startLoop(t, LoopConfig{
		TickInterval:   time.Hour,
		SpawnInterval:  5 * time.Millisecond,
		TargetLifetime: time.Hour,
	})

	ctx := context.Background()
	if _, err := l.StartSession(ctx); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	waitFor(t, events, time.Second, ofType(EventTargetSpawned))

	snap, err := l.EndSession(ctx)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if snap.Status != StatusEnded || len(snap.Targets) != 0 {
		t.Errorf("Expected ended session with no targets, got %s/%d", snap.Status, len(snap.Targets))
	}

	// Spawning stops with the session.
	time.Sleep(20 * time.Millisecond)
	snap, _ = l.Snapshot(ctx)
	if len(snap.Targets) != 0 {
		t.Errorf("Expected no spawns after end, got %d targets", len(snap.Targets))
	}

	// Ending again is harmless.
	if _, err := l.EndSession(ctx); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
}

func TestLoopStop(t *testing.T) {
	l := NewLoop(LoopConfig{}, nil)
	go l.Run(context.Background())

	l.Stop()
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}

	if _, err := l.StartSession(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
	l.Stop()
}

func TestLoopContextCancel(t *testing.T) {
	l := NewLoop(LoopConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)

	cancel()
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on cancel")
	}
}

func TestLoopResizeBoundsSpawns(t *testing.T) {
	l, events := startLoop(t, LoopConfig{
		TickInterval:   time.Hour,
		SpawnInterval:  2 * time.Millisecond,
		TargetLifetime: time.Hour,
	})

	ctx := context.Background()
	if err := l.Resize(ctx, 120, 80); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if _, err := l.StartSession(ctx); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	for i := 0; i < 10; i++ {
		ev := waitFor(t, events, time.Second, ofType(EventTargetSpawned))
		p := ev.Target.Position
		if p.X > 120-TargetSize || p.Y > 80-TargetSize {
			t.Fatalf("target outside resized area: %+v", p)
		}
	}
}
