package hud

import (
	"context"
	"time"

	"github.com/teslashibe/go-hud/pkg/detection"
)

// FrameSource supplies the most recent camera frame (JPEG)
type FrameSource interface {
	// Latest returns the newest frame, or false if none has arrived yet
	Latest() ([]byte, bool)
}

// FrameSourceFunc adapts a function to FrameSource
type FrameSourceFunc func() ([]byte, bool)

// Latest calls f
func (f FrameSourceFunc) Latest() ([]byte, bool) {
	return f()
}

type detectResult struct {
	gen     uint64
	dets    []detection.Detection
	err     error
	latency time.Duration
}

// Run drives the session until ctx is done. Every tick starts a detection on
// the latest frame unless one is still in flight, in which case the tick only
// advances timers on the last known tracks. A call running past the detect
// timeout is abandoned and its late result discarded. frames may be nil for
// sources that do not need a camera.
func (s *Session) Run(ctx context.Context, frames FrameSource) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	results := make(chan detectResult, 1)
	var (
		gen       uint64
		inFlight  bool
		startedAt time.Time
	)

	s.logger.Info("hud loop started", "tick", s.cfg.TickInterval, "detectTimeout", s.cfg.DetectTimeout)
	defer func() { s.logger.Info("hud loop stopped", "stats", s.Stats()) }()

	for {
		select {
		case <-ctx.Done():
			return nil

		case r := <-results:
			if ctx.Err() != nil {
				return nil
			}
			if r.gen != gen {
				continue // abandoned call
			}
			inFlight = false
			s.stats.observe(r.latency, r.err)
			// A merged source returns what its healthy parts found
			if r.err != nil {
				s.logger.Debug("detection failed", "error", r.err, "detections", len(r.dets))
			}
			s.Step(r.dets, s.clock.Now())

		case <-ticker.C():
			now := s.clock.Now()
			s.stats.update(func(st *Stats) { st.Ticks++ })

			if inFlight {
				if now.Sub(startedAt) <= s.cfg.DetectTimeout {
					s.stats.update(func(st *Stats) { st.Skipped++ })
					s.Advance(now)
					continue
				}
				gen++
				inFlight = false
				s.stats.update(func(st *Stats) { st.Abandoned++ })
				s.logger.Warn("detection abandoned", "elapsed", now.Sub(startedAt))
			}

			var frame []byte
			if frames != nil {
				f, ok := frames.Latest()
				if !ok {
					s.Advance(now)
					continue
				}
				frame = f
			}

			inFlight = true
			startedAt = now
			go s.detect(ctx, results, gen, frame, now)
		}
	}
}

func (s *Session) detect(ctx context.Context, results chan<- detectResult, gen uint64, frame []byte, started time.Time) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DetectTimeout)
	defer cancel()

	dets, err := s.detector.Detect(dctx, frame)
	r := detectResult{gen: gen, dets: dets, err: err, latency: s.clock.Since(started)}
	select {
	case results <- r:
	case <-ctx.Done():
	}
}
