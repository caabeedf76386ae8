package journal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-hud/pkg/feedback"
)

// writeTimeout bounds a single background insert
const writeTimeout = 5 * time.Second

// Sink is a feedback.Sink that journals events on a background goroutine so
// the HUD loop never waits on disk. Events arriving while the buffer is full
// are dropped and counted.
type Sink struct {
	j       *Journal
	events  chan feedback.Event
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewSink starts a background writer with room for buffer pending events
func (j *Journal) NewSink(buffer int) *Sink {
	if buffer <= 0 {
		buffer = 64
	}
	s := &Sink{
		j:      j,
		events: make(chan feedback.Event, buffer),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sink) run() {
	defer close(s.done)
	for e := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := s.j.Record(ctx, e); err != nil {
			s.failed.Add(1)
			s.j.logger.Warn("journal write failed", "kind", e.Kind, "error", err)
		}
		cancel()
	}
}

// Handle queues e for writing
func (s *Sink) Handle(e feedback.Event) {
	if !Journaled(e.Kind) {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.events <- e:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the buffer was full
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Failed returns how many writes returned an error
func (s *Sink) Failed() int64 {
	return s.failed.Load()
}

// Close stops accepting events and waits for pending writes. Events handled
// after Close count as dropped.
func (s *Sink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
	<-s.done
}
