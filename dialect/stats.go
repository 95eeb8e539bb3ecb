package dialect

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// RunStats holds statement execution statistics.
type RunStats struct {
	// TotalRuns is the total number of statements executed.
	TotalRuns atomic.Int64
	// TotalDuration is the total time spent executing statements.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowRuns is the count of statements exceeding the slow threshold.
	SlowRuns atomic.Int64
	// Errors is the count of failed statements.
	Errors atomic.Int64
	// Transient is the count of failures classified as transient.
	Transient atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *RunStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalRuns:     s.TotalRuns.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowRuns:      s.SlowRuns.Load(),
		Errors:        s.Errors.Load(),
		Transient:     s.Transient.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *RunStats) Reset() {
	s.TotalRuns.Store(0)
	s.TotalDuration.Store(0)
	s.SlowRuns.Store(0)
	s.Errors.Store(0)
	s.Transient.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of execution statistics.
type StatsSnapshot struct {
	TotalRuns     int64
	TotalDuration time.Duration
	SlowRuns      int64
	Errors        int64
	Transient     int64
}

// AvgDuration returns the average statement duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	if s.TotalRuns == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.TotalRuns)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"runs=%d duration=%s avg=%s slow=%d errors=%d transient=%d",
		s.TotalRuns, s.TotalDuration, s.AvgDuration(), s.SlowRuns, s.Errors, s.Transient,
	)
}

// SlowQueryHook is a function called when a slow statement is detected.
type SlowQueryHook func(ctx context.Context, query string, params map[string]any, duration time.Duration)

// StatsExecutor wraps an Executor with execution statistics collection.
type StatsExecutor struct {
	Executor
	stats         *RunStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	mu            sync.RWMutex
}

// StatsOption configures the StatsExecutor.
type StatsOption func(*StatsExecutor)

// WithSlowThreshold sets the threshold for slow statement detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsExecutor) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsExecutor) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements to the given logger. Parameter
// values are not logged, only their names.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	if logger == nil {
		logger = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, params map[string]any, duration time.Duration) {
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		slices.Sort(names)
		logger.WarnContext(ctx, "slow statement detected", "duration", duration, "query", query, "params", names)
	})
}

// NewStatsExecutor wraps an Executor with statistics collection.
func NewStatsExecutor(exec Executor, opts ...StatsOption) *StatsExecutor {
	s := &StatsExecutor{
		Executor:      exec,
		stats:         &RunStats{},
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunStats returns the underlying RunStats for reading statistics.
func (s *StatsExecutor) RunStats() *RunStats {
	return s.stats
}

// SlowThreshold returns the current slow statement threshold.
func (s *StatsExecutor) SlowThreshold() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slowThreshold
}

// SetSlowThreshold updates the slow statement threshold.
func (s *StatsExecutor) SetSlowThreshold(threshold time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slowThreshold = threshold
}

// Run executes the statement and records statistics.
func (s *StatsExecutor) Run(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	start := time.Now()
	rows, err := s.Executor.Run(ctx, query, params)
	s.record(ctx, query, params, start, err)
	return rows, err
}

func (s *StatsExecutor) record(ctx context.Context, query string, params map[string]any, start time.Time, err error) {
	duration := time.Since(start)
	s.stats.TotalRuns.Add(1)
	s.stats.TotalDuration.Add(int64(duration))

	if err != nil {
		s.stats.Errors.Add(1)
		if IsTransient(err) {
			s.stats.Transient.Add(1)
		}
	}

	s.mu.RLock()
	threshold := s.slowThreshold
	hook := s.slowHook
	s.mu.RUnlock()

	if duration > threshold {
		s.stats.SlowRuns.Add(1)
		if hook != nil {
			hook(ctx, query, params, duration)
		}
	}
}

var _ Executor = (*StatsExecutor)(nil)
