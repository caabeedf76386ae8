package hud

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// latencyWindow is how many detector latencies are kept for the summary
const latencyWindow = 100

// Stats summarizes loop activity
type Stats struct {
	Ticks         int     `json:"ticks"`
	Scans         int     `json:"scans"`     // Detector calls completed
	Failures      int     `json:"failures"`  // Detector calls that returned an error
	Skipped       int     `json:"skipped"`   // Ticks that found a call still in flight
	Abandoned     int     `json:"abandoned"` // Calls given up after the detect timeout
	LatencyMean   float64 `json:"latencyMeanMs"`
	LatencyStdDev float64 `json:"latencyStdDevMs"`
	Kills         int     `json:"kills"`
	Shots         int     `json:"shots"`
}

type statsRecorder struct {
	mu        sync.Mutex
	stats     Stats
	latencies []float64 // ring of milliseconds
	next      int
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{latencies: make([]float64, 0, latencyWindow)}
}

func (r *statsRecorder) update(fn func(*Stats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.stats)
}

func (r *statsRecorder) observe(d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Scans++
	if err != nil {
		r.stats.Failures++
	}
	ms := float64(d) / float64(time.Millisecond)
	if len(r.latencies) < latencyWindow {
		r.latencies = append(r.latencies, ms)
		return
	}
	r.latencies[r.next] = ms
	r.next = (r.next + 1) % latencyWindow
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	switch len(r.latencies) {
	case 0:
	case 1:
		s.LatencyMean = r.latencies[0]
	default:
		s.LatencyMean, s.LatencyStdDev = stat.MeanStdDev(r.latencies, nil)
	}
	return s
}

// Stats returns loop counters and detector latency over the recent window
func (s *Session) Stats() Stats {
	st := s.stats.snapshot()
	f := s.Snapshot()
	st.Kills = f.Kills
	st.Shots = f.Shots
	return st
}
