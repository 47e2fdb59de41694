package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
)

// Pool errors.
var (
	// ErrUnknownKind is returned by Get for an unregistered analysis kind.
	ErrUnknownKind = errors.New("worker pool: unknown analysis kind")

	// ErrWorkerUnavailable is returned by Get when the worker for a kind
	// failed to initialize. The failure is not permanent: a later Get
	// retries the initialization.
	ErrWorkerUnavailable = errors.New("worker pool: worker unavailable")
)

// Factory constructs a fresh analyzer for a kind.
type Factory func() analysis.Analyzer

// PoolStatus is a read-only snapshot of the pool.
type PoolStatus struct {
	Workers           map[analysis.Kind]Snapshot `json:"workers"`
	ActiveConnections int                        `json:"activeConnections"`
	Initialized       bool                       `json:"initialized"`
}

// Pool owns the singleton worker per analysis kind and the set of active
// connection IDs. Workers are created lazily or in bulk via Initialize and
// live until process shutdown; connections come and go.
//
// The pool lock covers only obtain-or-create of a worker reference. Analysis
// runs happen outside it, so a slow run of one kind never blocks access to
// the others.
type Pool struct {
	logger *slog.Logger

	mu          sync.Mutex
	factories   map[analysis.Kind]Factory
	workers     map[analysis.Kind]*Worker
	connections map[string]struct{}
	initialized bool
}

// NewPool creates a pool with the given analyzer factories. No worker is
// constructed until Initialize or the first Get.
func NewPool(logger *slog.Logger, factories map[analysis.Kind]Factory) *Pool {
	return &Pool{
		logger:      logger.With("component", "worker_pool"),
		factories:   factories,
		workers:     make(map[analysis.Kind]*Worker),
		connections: make(map[string]struct{}),
	}
}

// Initialize constructs and initializes one worker per registered kind.
// Idempotent under a double-checked lock. If any worker fails, the whole
// call fails and the pool stays uninitialized; failed workers remain in the
// map with error status for reporting, and a later Initialize retries them.
func (p *Pool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	p.logger.InfoContext(ctx, "initializing worker pool", "kinds", len(p.factories))

	for kind, factory := range p.factories {
		w, ok := p.workers[kind]
		if !ok {
			w = New(factory(), p.logger)
			p.workers[kind] = w
		}

		err := w.Initialize(ctx)
		if err != nil {
			return fmt.Errorf("worker pool: %w", err)
		}
	}

	p.initialized = true
	p.logger.InfoContext(ctx, "worker pool initialized")

	return nil
}

// Initialized reports whether bulk initialization completed.
func (p *Pool) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.initialized
}

// Get returns the live singleton worker for kind, lazily constructing and
// initializing it if needed, so the pool degrades gracefully when bulk
// Initialize was skipped or partially failed. The call may block for a cold
// resource load. A worker whose initialization failed yields
// ErrWorkerUnavailable; the failed initialization is retried on each Get.
func (p *Pool) Get(ctx context.Context, kind analysis.Kind) (*Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.workers[kind]
	if !ok {
		factory, known := p.factories[kind]
		if !known {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
		}

		w = New(factory(), p.logger)
		p.workers[kind] = w
	}

	if w.Status() != StatusReady && w.Status() != StatusBusy {
		err := w.Initialize(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrWorkerUnavailable, kind, err)
		}
	}

	return w, nil
}

// TrackConnection adds a connection ID to the active set.
func (p *Pool) TrackConnection(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.connections[id] = struct{}{}
}

// UntrackConnection removes a connection ID. Removing an ID that was never
// tracked is a no-op.
func (p *Pool) UntrackConnection(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.connections, id)
}

// ActiveConnections returns the current tracked connection count.
func (p *Pool) ActiveConnections() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.connections)
}

// Status returns a snapshot of the pool. Only the snapshot copy itself
// happens under the lock.
func (p *Pool) Status() PoolStatus {
	p.mu.Lock()

	workers := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}

	status := PoolStatus{
		Workers:           make(map[analysis.Kind]Snapshot, len(workers)),
		ActiveConnections: len(p.connections),
		Initialized:       p.initialized,
	}
	p.mu.Unlock()

	// Worker snapshots take per-worker locks; done outside the pool lock.
	for _, w := range workers {
		status.Workers[w.Kind()] = w.Snapshot()
	}

	return status
}

// DefaultFactories returns the standard analyzer factory registration.
// Declared here so callers wire the pool without importing every kind.
func DefaultFactories(
	lint Factory, refactor Factory, testgen Factory,
) map[analysis.Kind]Factory {
	return map[analysis.Kind]Factory{
		analysis.KindLint:     lint,
		analysis.KindRefactor: refactor,
		analysis.KindTestgen:  testgen,
	}
}
