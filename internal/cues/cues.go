// Package cues turns session events into audio cues.
//
// Synthesis lives in the frontend; this package only decides which cue
// plays and describes its tones so any Player can render them.
package cues

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/scorequest/scorequest-desktop/internal/session"
)

// Name identifies a cue.
type Name string

const (
	CueHit       Name = "hit"
	CueCombo     Name = "combo"
	CuePowerUp   Name = "power_up"
	CueGameStart Name = "game_start"
	CueGameEnd   Name = "game_end"
)

// Wave is an oscillator shape.
type Wave string

const (
	WaveSine     Wave = "sine"
	WaveSquare   Wave = "square"
	WaveTriangle Wave = "triangle"
	WaveSawtooth Wave = "sawtooth"
)

// Tone is one oscillator note. When SweepTo is set the frequency ramps
// exponentially from Frequency to SweepTo over Length.
type Tone struct {
	Frequency float64       `json:"frequency"`
	SweepTo   float64       `json:"sweepTo,omitempty"`
	Wave      Wave          `json:"wave"`
	Gain      float64       `json:"gain"`
	Length    time.Duration `json:"length"`
	Delay     time.Duration `json:"delay"`
}

// Cue is a sound to play in response to a session event.
type Cue struct {
	Name  Name   `json:"name"`
	Level int    `json:"level,omitempty"`
	Tones []Tone `json:"tones"`
}

var comboNotes = []float64{440, 554, 659, 784, 880}

// Hit is the short falling beep played on every scored hit.
func Hit() Cue {
	return Cue{Name: CueHit, Tones: []Tone{
		{Frequency: 800, SweepTo: 400, Wave: WaveSine, Gain: 0.3, Length: 100 * time.Millisecond},
	}}
}

// Combo rises one note per combo level up to the fifth.
func Combo(level int) Cue {
	idx := min(max(level, 1), len(comboNotes)) - 1
	return Cue{Name: CueCombo, Level: level, Tones: []Tone{
		{Frequency: comboNotes[idx], Wave: WaveTriangle, Gain: 0.2, Length: 300 * time.Millisecond},
	}}
}

// PowerUp is the rising sweep that marks the reward threshold.
func PowerUp() Cue {
	return Cue{Name: CuePowerUp, Tones: []Tone{
		{Frequency: 200, SweepTo: 800, Wave: WaveSawtooth, Gain: 0.1, Length: 500 * time.Millisecond},
	}}
}

// GameStart is an ascending arpeggio.
func GameStart() Cue {
	return arpeggio(CueGameStart, []float64{440, 554, 659}, WaveSquare, 200*time.Millisecond, 100*time.Millisecond)
}

// GameEnd is a descending arpeggio.
func GameEnd() Cue {
	return arpeggio(CueGameEnd, []float64{659, 554, 440}, WaveSine, 300*time.Millisecond, 150*time.Millisecond)
}

func arpeggio(name Name, notes []float64, wave Wave, length, step time.Duration) Cue {
	c := Cue{Name: name, Tones: make([]Tone, len(notes))}
	for i, f := range notes {
		c.Tones[i] = Tone{Frequency: f, Wave: wave, Gain: 0.15, Length: length, Delay: time.Duration(i) * step}
	}
	return c
}

// Player renders cues. Play must not block for long; it runs on the session
// goroutine.
type Player interface {
	Play(Cue) error
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(Cue) error

func (f PlayerFunc) Play(c Cue) error { return f(c) }

// Bridge is a session.Emitter that plays cues for game events. Playback
// failures never reach the session.
type Bridge struct {
	player    Player
	logger    *log.Logger
	threshold int

	// poweredUp is set once the power-up cue has played for sessionID.
	sessionID string
	poweredUp bool
}

// NewBridge creates a bridge to player. A nil logger discards output.
func NewBridge(player Player, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Bridge{player: player, logger: logger, threshold: session.NFTScoreThreshold}
}

// Emit implements session.Emitter.
func (b *Bridge) Emit(ev session.Event) {
	if ev.SessionID != b.sessionID {
		b.sessionID = ev.SessionID
		b.poweredUp = false
	}

	switch ev.Type {
	case session.EventSessionStarted:
		b.poweredUp = false
		b.play(GameStart())
	case session.EventSessionEnded:
		b.play(GameEnd())
	case session.EventTargetHit:
		b.play(Hit())
		if ev.Hit == nil {
			return
		}
		if ev.Hit.Combo >= 2 {
			b.play(Combo(ev.Hit.Combo))
		}
		if !b.poweredUp && ev.Hit.Crossed(b.threshold) {
			b.poweredUp = true
			b.play(PowerUp())
		}
	}
}

func (b *Bridge) play(c Cue) {
	if b.player == nil {
		return
	}
	if err := b.safePlay(c); err != nil {
		b.logger.Printf("cue_failed name=%s level=%d error=%q", c.Name, c.Level, err)
	}
}

func (b *Bridge) safePlay(c Cue) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cues: player panic: %v", r)
		}
	}()
	return b.player.Play(c)
}
