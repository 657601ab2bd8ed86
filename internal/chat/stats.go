package chat

import (
	"sync"
	"time"
)

// TurnStats aggregates per-turn timings for one session. Advisory only; it
// never influences control flow.
type TurnStats struct {
	mu sync.Mutex

	count     int64
	errors    int64
	chunks    int64
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
}

// StatsSnapshot is a point-in-time view of the collected turn statistics.
type StatsSnapshot struct {
	Turns       int64
	Errors      int64
	Chunks      int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// NewTurnStats creates an empty collector.
func NewTurnStats() *TurnStats {
	return &TurnStats{}
}

// Record adds one settled turn.
func (s *TurnStats) Record(elapsed time.Duration, chunks int, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.chunks += int64(chunks)
	s.totalTime += elapsed
	if failed {
		s.errors++
	}
	if s.count == 1 || elapsed < s.minTime {
		s.minTime = elapsed
	}
	if elapsed > s.maxTime {
		s.maxTime = elapsed
	}
}

// Snapshot returns computed stats.
func (s *TurnStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Turns:       s.count,
		Errors:      s.errors,
		Chunks:      s.chunks,
		TotalTimeMs: s.totalTime.Milliseconds(),
		MinTimeMs:   s.minTime.Milliseconds(),
		MaxTimeMs:   s.maxTime.Milliseconds(),
	}
	if s.count > 0 {
		snap.AvgTimeMs = float64(s.totalTime.Milliseconds()) / float64(s.count)
	}
	return snap
}
