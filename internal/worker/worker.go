// Package worker provides the long-lived analysis workers and the pool that
// owns their lifecycle and the active-connection registry.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
)

// Status is a worker lifecycle state. Transitions are
// uninitialized → initializing → {ready|error} during setup and
// ready → busy → ready during use. An error during a run flips the worker
// to error for reporting, but the next run may still proceed.
type Status string

const (
	// StatusUninitialized means the worker has never loaded its resources.
	StatusUninitialized Status = "uninitialized"
	// StatusInitializing means a resource load is in flight.
	StatusInitializing Status = "initializing"
	// StatusReady means the worker can accept a run.
	StatusReady Status = "ready"
	// StatusBusy means a run is in flight.
	StatusBusy Status = "busy"
	// StatusError means the last initialization or run failed.
	StatusError Status = "error"
)

// PerfStats holds cumulative run counters for one worker.
type PerfStats struct {
	TotalRuns    int64         `json:"totalRuns"`
	TotalTime    time.Duration `json:"totalTime"`
	AvgTime      time.Duration `json:"avgTime"`
	LastDuration time.Duration `json:"lastDuration"`
}

// Snapshot is a point-in-time copy of a worker's observable state.
type Snapshot struct {
	Kind      analysis.Kind `json:"kind"`
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	LastRunAt time.Time     `json:"lastRunAt,omitzero"`
	Stats     PerfStats     `json:"stats"`
}

// Worker wraps one analyzer instance with lifecycle state and performance
// counters. A worker serializes its own runs: the pool hands out the same
// worker to every request of a kind, and runMu queues them.
type Worker struct {
	analyzer analysis.Analyzer
	logger   *slog.Logger

	// runMu serializes analyzer invocations. It is never held while
	// stateMu is held, so snapshots stay responsive during long runs.
	runMu sync.Mutex

	stateMu   sync.Mutex
	status    Status
	lastRunAt time.Time
	stats     PerfStats
}

// New creates a worker in the uninitialized state.
func New(analyzer analysis.Analyzer, logger *slog.Logger) *Worker {
	return &Worker{
		analyzer: analyzer,
		logger:   logger.With("worker", analyzer.Name()),
		status:   StatusUninitialized,
	}
}

// Kind returns the analysis kind this worker serves.
func (w *Worker) Kind() analysis.Kind { return w.analyzer.Kind() }

// Name returns the wrapped analyzer's name.
func (w *Worker) Name() string { return w.analyzer.Name() }

// Initialize loads the analyzer's resources. It is idempotent for a ready
// worker and retries after a previous failure. The call may block for the
// duration of a cold load.
func (w *Worker) Initialize(ctx context.Context) error {
	w.stateMu.Lock()
	if w.status == StatusReady || w.status == StatusBusy {
		w.stateMu.Unlock()

		return nil
	}

	w.status = StatusInitializing
	w.stateMu.Unlock()

	w.logger.InfoContext(ctx, "initializing worker")

	start := time.Now()

	err := w.analyzer.LoadResources(ctx)

	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	if err != nil {
		w.status = StatusError
		w.logger.ErrorContext(ctx, "worker initialization failed", "error", err)

		return fmt.Errorf("initialize %s worker: %w", w.Kind(), err)
	}

	w.status = StatusReady
	w.logger.InfoContext(ctx, "worker ready", "load_time", time.Since(start))

	return nil
}

// Run invokes the analyzer. Runs of the same worker are serialized; the
// call blocks for the full analysis. A failed run flips the status to
// error for reporting but does not poison the worker: the next Run
// proceeds normally.
func (w *Worker) Run(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	w.setStatus(StatusBusy)

	start := time.Now()
	result, err := w.analyzer.Process(ctx, req)
	elapsed := time.Since(start)

	w.stateMu.Lock()
	w.lastRunAt = time.Now()
	w.stats.TotalRuns++
	w.stats.TotalTime += elapsed
	w.stats.AvgTime = w.stats.TotalTime / time.Duration(w.stats.TotalRuns)
	w.stats.LastDuration = elapsed

	if err != nil {
		w.status = StatusError
	} else {
		w.status = StatusReady
	}
	w.stateMu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("%s analysis: %w", w.Kind(), err)
	}

	return result, nil
}

// Status returns the current lifecycle state.
func (w *Worker) Status() Status {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	return w.status
}

// Snapshot returns a copy of the worker's observable state.
func (w *Worker) Snapshot() Snapshot {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	return Snapshot{
		Kind:      w.Kind(),
		Name:      w.Name(),
		Status:    w.status,
		LastRunAt: w.lastRunAt,
		Stats:     w.stats,
	}
}

// TotalRuns returns the cumulative run count.
func (w *Worker) TotalRuns() int64 {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	return w.stats.TotalRuns
}

func (w *Worker) setStatus(s Status) {
	w.stateMu.Lock()
	w.status = s
	w.stateMu.Unlock()
}
