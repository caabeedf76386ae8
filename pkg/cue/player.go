package cue

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/teslashibe/go-hud/internal/log"
	"github.com/teslashibe/go-hud/pkg/feedback"
)

// Player plays cues on the local speaker. It is a feedback.Sink.
type Player struct {
	cfg   Config
	mu    sync.Mutex
	mixer *beep.Mixer
	ready bool
}

// NewPlayer creates a player; call Init before events arrive
func NewPlayer(cfg Config) *Player {
	return &Player{cfg: cfg, mixer: &beep.Mixer{}}
}

// Init opens the speaker. The HUD keeps working without sound if this fails.
func (p *Player) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ready {
		return nil
	}
	rate := p.cfg.rate()
	if err := speaker.Init(rate, rate.N(100*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(p.mixer)
	p.ready = true
	return nil
}

// Handle plays the cue attached to e, if any
func (p *Player) Handle(e feedback.Event) {
	if e.Cue == "" {
		return
	}
	p.Play(feedback.Kind(e.Cue))
}

// Play queues the cue for kind on the mixer
func (p *Player) Play(kind feedback.Kind) {
	p.mu.Lock()
	ready := p.ready
	p.mu.Unlock()
	if !ready {
		return
	}

	s, err := Synth(kind, p.cfg)
	if err != nil {
		log.Debug("cue skipped", "kind", kind, "err", err)
		return
	}
	speaker.Lock()
	p.mixer.Add(s)
	speaker.Unlock()
}

// Close stops playback and releases the speaker
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return
	}
	speaker.Lock()
	p.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	p.ready = false
}
