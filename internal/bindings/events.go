package bindings

import (
	"context"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/scorequest/scorequest-desktop/internal/cues"
	"github.com/scorequest/scorequest-desktop/internal/lbclient"
	"github.com/scorequest/scorequest-desktop/internal/leaderboard"
	"github.com/scorequest/scorequest-desktop/internal/session"
)

// Frontend event names.
const (
	EventGamePrefix         = "game:"
	EventComboEffect        = "game:combo_effect"
	EventAudioCue           = "audio:cue"
	EventLeaderboardUpdated = "leaderboard:updated"
	EventLeaderboardError   = "leaderboard:error"
	EventWalletChanged      = "wallet:changed"
	EventNFTMinted          = "nft:minted"
)

// comboEffectMin is the smallest combo that gets an on-screen effect.
const comboEffectMin = 3

// EventSink delivers named events to the frontend.
type EventSink interface {
	Emit(name string, data any)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(name string, data any)

// Emit calls f(name, data).
func (f EventSinkFunc) Emit(name string, data any) { f(name, data) }

// WailsSink emits through the Wails runtime. ctx must be the context passed
// to OnStartup.
type WailsSink struct {
	ctx context.Context
}

// NewWailsSink returns a sink bound to the Wails application context.
func NewWailsSink(ctx context.Context) WailsSink { return WailsSink{ctx: ctx} }

// Emit sends the event to the webview.
func (s WailsSink) Emit(name string, data any) {
	runtime.EventsEmit(s.ctx, name, data)
}

// ComboEffect is the payload of game:combo_effect.
type ComboEffect struct {
	Combo      int              `json:"combo"`
	Multiplier int              `json:"multiplier"`
	Position   session.Position `json:"position"`
}

// LeaderboardUpdate is the payload of leaderboard:updated.
type LeaderboardUpdate struct {
	Submission  *lbclient.Submission `json:"submission,omitempty"`
	Leaderboard []leaderboard.Entry  `json:"leaderboard"`
	Player      *lbclient.Player     `json:"player,omitempty"`
}

// ErrorPayload is the payload of leaderboard:error.
type ErrorPayload struct {
	Op    string `json:"op"`
	Error string `json:"error"`
}

// webviewEmitter forwards session events as game:<type>.
type webviewEmitter struct {
	m *GameModule
}

func (w webviewEmitter) Emit(ev session.Event) {
	w.m.emit(EventGamePrefix+string(ev.Type), ev)

	if ev.Type == session.EventTargetHit && ev.Hit != nil && ev.Hit.Combo >= comboEffectMin {
		w.m.emit(EventComboEffect, ComboEffect{
			Combo:      ev.Hit.Combo,
			Multiplier: ev.Hit.Multiplier,
			Position:   ev.Hit.Center,
		})
	}
}

// cuePlayer hands cue descriptions to the frontend audio layer.
func (m *GameModule) cuePlayer() cues.Player {
	return cues.PlayerFunc(func(c cues.Cue) error {
		m.emit(EventAudioCue, c)
		return nil
	})
}
