// Package cue synthesizes the HUD's audio cues: short procedural tones for
// lock, fire and destroy events, rendered to WAV for clients or played on the
// local speaker.
package cue

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/wav"
	"github.com/teslashibe/go-hud/pkg/feedback"
)

// ErrUnknownCue is returned for a kind with no cue
var ErrUnknownCue = errors.New("unknown cue")

// Config holds audio synthesis settings
type Config struct {
	SampleRate   int
	MasterVolume float64                   // 0-1
	Volumes      map[feedback.Kind]float64 // Per-cue volume, missing = 1
}

// DefaultConfig returns the standard cue settings
func DefaultConfig() Config {
	return Config{
		SampleRate:   44100,
		MasterVolume: 0.6,
		Volumes: map[feedback.Kind]float64{
			feedback.NewObjectDetected: 0.5,
			feedback.Destroyed:         1.0,
		},
	}
}

func (c Config) rate() beep.SampleRate {
	if c.SampleRate <= 0 {
		return beep.SampleRate(44100)
	}
	return beep.SampleRate(c.SampleRate)
}

func (c Config) volume(k feedback.Kind) float64 {
	v, ok := c.Volumes[k]
	if !ok {
		v = 1
	}
	return v * c.MasterVolume
}

// Names lists the kinds that have a cue
func Names() []feedback.Kind {
	var out []feedback.Kind
	for _, k := range feedback.Kinds {
		if feedback.CueFor(k) != "" {
			out = append(out, k)
		}
	}
	return out
}

// Synth builds the streamer for a cue kind
func Synth(kind feedback.Kind, cfg Config) (beep.Streamer, error) {
	rate := cfg.rate()

	var s beep.Streamer
	switch kind {
	case feedback.LockBegin:
		// Short rising blip
		s = tone(660, 990, 80*time.Millisecond, WaveSine, rate)

	case feedback.Locked:
		// Two-note confirm (A5, E6)
		s = beep.Seq(
			tone(880, 880, 60*time.Millisecond, WaveSquare, rate),
			tone(1318.51, 1318.51, 90*time.Millisecond, WaveSquare, rate),
		)

	case feedback.Fire:
		// Falling zap, 800Hz down to 400Hz
		zap := tone(800, 400, 200*time.Millisecond, WaveSaw, rate)
		s = beep.Seq(zap, beep.Silence(rate.N(100*time.Millisecond)))

	case feedback.Destroyed:
		// Noise burst over a low rumble
		d := 400 * time.Millisecond
		noise := tone(0, 0, d, WaveNoise, rate)
		rumble := tone(120, 40, d, WaveSaw, rate)
		s = beep.Take(rate.N(d), beep.Mix(newVolume(noise, 0.6), newVolume(rumble, 0.5)))

	case feedback.NewObjectDetected:
		// Soft ping
		sine, err := generators.SineTone(rate, 1760)
		if err != nil {
			return nil, fmt.Errorf("sine tone: %w", err)
		}
		d := 50 * time.Millisecond
		s = NewEnvelope(beep.Take(rate.N(d), sine), d, 2*time.Millisecond, 30*time.Millisecond, rate)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCue, kind)
	}

	return newVolume(s, cfg.volume(kind)), nil
}

// RenderWAV writes the cue as a 16-bit mono WAV file
func RenderWAV(w io.Writer, kind feedback.Kind, cfg Config) error {
	s, err := Synth(kind, cfg)
	if err != nil {
		return err
	}

	format := beep.Format{SampleRate: cfg.rate(), NumChannels: 1, Precision: 2}
	var buf writeSeeker
	if err := wav.Encode(&buf, s, format); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// writeSeeker is an in-memory io.WriteSeeker for wav.Encode, which seeks
// back to patch the header sizes
type writeSeeker struct {
	buf []byte
	pos int
}

func (ws *writeSeeker) Write(p []byte) (int, error) {
	if need := ws.pos + len(p); need > len(ws.buf) {
		ws.buf = append(ws.buf, make([]byte, need-len(ws.buf))...)
	}
	copy(ws.buf[ws.pos:], p)
	ws.pos += len(p)
	return len(p), nil
}

func (ws *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var base int
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = ws.pos
	case io.SeekEnd:
		base = len(ws.buf)
	default:
		return 0, errors.New("seek: invalid whence")
	}
	pos := base + int(offset)
	if pos < 0 {
		return 0, errors.New("seek: negative position")
	}
	ws.pos = pos
	return int64(pos), nil
}

func (ws *writeSeeker) Bytes() []byte {
	return bytes.Clone(ws.buf)
}
