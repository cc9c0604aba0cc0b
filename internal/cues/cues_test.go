package cues

import (
	"bytes"
	"errors"
	"log"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/scorequest/scorequest-desktop/internal/session"
)

type capture struct {
	played []Cue
	err    error
	panics bool
}

func (c *capture) Play(cue Cue) error {
	c.played = append(c.played, cue)
	if c.panics {
		panic("device gone")
	}
	return c.err
}

func (c *capture) names() []Name {
	out := make([]Name, len(c.played))
	for i, cue := range c.played {
		out[i] = cue.Name
	}
	return out
}

func (c *capture) count(n Name) int {
	total := 0
	for _, cue := range c.played {
		if cue.Name == n {
			total++
		}
	}
	return total
}

func TestComboNotes(t *testing.T) {
	tests := []struct {
		level int
		want  float64
	}{
		{0, 440},
		{1, 440},
		{2, 554},
		{5, 880},
		{9, 880},
	}
	for _, tt := range tests {
		got := Combo(tt.level).Tones[0].Frequency
		if got != tt.want {
			t.Errorf("Combo(%d) frequency = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestArpeggioDelays(t *testing.T) {
	start := GameStart()
	if len(start.Tones) != 3 {
		t.Fatalf("Expected 3 tones, got %d", len(start.Tones))
	}
	for i, tone := range start.Tones {
		if tone.Delay != time.Duration(i)*100*time.Millisecond {
			t.Errorf("tone %d delay = %v", i, tone.Delay)
		}
	}
	end := GameEnd()
	if end.Tones[0].Frequency <= end.Tones[2].Frequency {
		t.Error("Expected game end arpeggio to descend")
	}
}

func TestBridgeCuesForSession(t *testing.T) {
	player := &capture{}
	bridge := NewBridge(player, nil)
	engine := session.NewEngine(bridge, rand.New(rand.NewSource(3)))

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	engine.Start(base)

	// Seven quick hits take the score from 0 to 25, crossing 20 on the sixth.
	for i := 0; i < 7; i++ {
		tg, _ := engine.Spawn(800, 384, base)
		engine.Hit(tg.ID, base.Add(time.Duration(i)*100*time.Millisecond))
	}
	engine.End()

	if got := player.count(CueGameStart); got != 1 {
		t.Errorf("Expected 1 start cue, got %d", got)
	}
	if got := player.count(CueHit); got != 7 {
		t.Errorf("Expected 7 hit cues, got %d", got)
	}
	if got := player.count(CueCombo); got != 6 {
		t.Errorf("Expected 6 combo cues, got %d", got)
	}
	if got := player.count(CuePowerUp); got != 1 {
		t.Errorf("Expected 1 power-up cue, got %d", got)
	}
	names := player.names()
	if names[len(names)-1] != CueGameEnd {
		t.Errorf("Expected last cue to be game_end, got %s", names[len(names)-1])
	}
}

func TestBridgePowerUpOncePerSession(t *testing.T) {
	player := &capture{}
	bridge := NewBridge(player, nil)

	cross := func(id string) {
		bridge.Emit(session.Event{
			Type:      session.EventTargetHit,
			SessionID: id,
			Hit:       &session.HitEvent{Combo: 1, ScoreBefore: 19, ScoreAfter: 20},
		})
	}

	cross("a")
	cross("a")
	if got := player.count(CuePowerUp); got != 1 {
		t.Fatalf("Expected 1 power-up in session a, got %d", got)
	}

	cross("b")
	if got := player.count(CuePowerUp); got != 2 {
		t.Errorf("Expected power-up again in session b, got %d", got)
	}
}

func TestBridgeSwallowsPlayerFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	failing := &capture{err: errors.New("no output device")}
	NewBridge(failing, logger).Emit(session.Event{Type: session.EventSessionStarted, SessionID: "x"})
	if !strings.Contains(buf.String(), "cue_failed name=game_start") {
		t.Errorf("Expected failure to be logged, got %q", buf.String())
	}

	buf.Reset()
	panicking := &capture{panics: true}
	NewBridge(panicking, logger).Emit(session.Event{Type: session.EventSessionEnded, SessionID: "x"})
	if !strings.Contains(buf.String(), "player panic") {
		t.Errorf("Expected panic to be logged, got %q", buf.String())
	}
}

func TestBridgeNilPlayer(t *testing.T) {
	bridge := NewBridge(nil, nil)
	bridge.Emit(session.Event{Type: session.EventSessionStarted})
}
