package amplimix

import (
	"sync"
	"time"
)

// MetricsHook observes mix ticks; the engine calls it after the mixer's
// critical section, never inside it.
type MetricsHook interface {
	ObserveMixTick(frames int, elapsed time.Duration)
}

// MixStats aggregates mix-tick timing so a host can watch the engine's
// real-time budget.
type MixStats struct {
	Ticks           uint64
	FramesRendered  uint64
	LastTick        time.Duration
	MaxTick         time.Duration
	UnderBudgetPct  float64
	budgetPerTick   time.Duration
	underBudgetHits uint64
}

// statsRecorder collects MixStats and forwards ticks to an optional hook.
type statsRecorder struct {
	mu    sync.Mutex
	stats MixStats
	hook  MetricsHook
}

// newStatsRecorder budgets each tick at bufferSize frames of real time at
// the output frequency.
func newStatsRecorder(bufferSize, frequency int) *statsRecorder {
	budget := time.Duration(float64(bufferSize) / float64(frequency) * float64(time.Second))
	return &statsRecorder{stats: MixStats{budgetPerTick: budget}}
}

func (s *statsRecorder) setHook(h MetricsHook) {
	s.mu.Lock()
	s.hook = h
	s.mu.Unlock()
}

func (s *statsRecorder) record(frames int, elapsed time.Duration) {
	s.mu.Lock()
	s.stats.Ticks++
	s.stats.FramesRendered += uint64(frames)
	s.stats.LastTick = elapsed
	if elapsed > s.stats.MaxTick {
		s.stats.MaxTick = elapsed
	}
	if elapsed <= s.stats.budgetPerTick {
		s.stats.underBudgetHits++
	}
	s.stats.UnderBudgetPct = float64(s.stats.underBudgetHits) / float64(s.stats.Ticks) * 100
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		hook.ObserveMixTick(frames, elapsed)
	}
}

func (s *statsRecorder) snapshot() MixStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
