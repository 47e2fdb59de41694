package worker_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
	"github.com/Sumatoshi-tech/codepulse/internal/worker"
)

var errLoadFailed = errors.New("resource load failed")

// stubAnalyzer is a controllable analysis.Analyzer for pool tests.
type stubAnalyzer struct {
	name     string
	kind     analysis.Kind
	loads    atomic.Int64
	failLoad atomic.Bool
	procErr  error
	delay    time.Duration
}

func (sa *stubAnalyzer) Name() string { return sa.name }

func (sa *stubAnalyzer) Kind() analysis.Kind { return sa.kind }

func (sa *stubAnalyzer) LoadResources(context.Context) error {
	sa.loads.Add(1)

	if sa.failLoad.Load() {
		return errLoadFailed
	}

	return nil
}

func (sa *stubAnalyzer) Process(_ context.Context, req analysis.Request) (*analysis.Result, error) {
	if sa.delay > 0 {
		time.Sleep(sa.delay)
	}

	if sa.procErr != nil {
		return nil, sa.procErr
	}

	return &analysis.Result{
		Report: &analysis.Report{Language: req.Language},
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newStubPool(stubs map[analysis.Kind]*stubAnalyzer) *worker.Pool {
	factories := make(map[analysis.Kind]worker.Factory, len(stubs))
	for kind, stub := range stubs {
		factories[kind] = func() analysis.Analyzer { return stub }
	}

	return worker.NewPool(testLogger(), factories)
}

func TestPool_GetReturnsSingleton(t *testing.T) {
	t.Parallel()

	stub := &stubAnalyzer{name: "lint", kind: analysis.KindLint}
	pool := newStubPool(map[analysis.Kind]*stubAnalyzer{analysis.KindLint: stub})

	first, err := pool.Get(context.Background(), analysis.KindLint)
	require.NoError(t, err)

	second, err := pool.Get(context.Background(), analysis.KindLint)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), stub.loads.Load(), "resources load once")
}

func TestPool_GetUnknownKind(t *testing.T) {
	t.Parallel()

	pool := newStubPool(nil)

	_, err := pool.Get(context.Background(), analysis.KindLint)
	require.ErrorIs(t, err, worker.ErrUnknownKind)
}

func TestPool_InitializeIdempotent(t *testing.T) {
	t.Parallel()

	stub := &stubAnalyzer{name: "lint", kind: analysis.KindLint}
	pool := newStubPool(map[analysis.Kind]*stubAnalyzer{analysis.KindLint: stub})

	require.NoError(t, pool.Initialize(context.Background()))
	require.NoError(t, pool.Initialize(context.Background()))

	assert.True(t, pool.Initialized())
	assert.Equal(t, int64(1), stub.loads.Load())
}

func TestPool_InitFailureSurfacesAndRetries(t *testing.T) {
	t.Parallel()

	stub := &stubAnalyzer{name: "lint", kind: analysis.KindLint}
	stub.failLoad.Store(true)

	pool := newStubPool(map[analysis.Kind]*stubAnalyzer{analysis.KindLint: stub})

	err := pool.Initialize(context.Background())
	require.ErrorIs(t, err, errLoadFailed)
	assert.False(t, pool.Initialized())

	// The failed worker stays visible with error status.
	status := pool.Status()
	require.Contains(t, status.Workers, analysis.KindLint)
	assert.Equal(t, worker.StatusError, status.Workers[analysis.KindLint].Status)

	// Get reports a typed unavailability error and retries the load.
	_, err = pool.Get(context.Background(), analysis.KindLint)
	require.ErrorIs(t, err, worker.ErrWorkerUnavailable)

	// Once the underlying fault clears, the same pool recovers.
	stub.failLoad.Store(false)

	w, err := pool.Get(context.Background(), analysis.KindLint)
	require.NoError(t, err)
	assert.Equal(t, worker.StatusReady, w.Status())

	require.NoError(t, pool.Initialize(context.Background()))
	assert.True(t, pool.Initialized())
}

func TestPool_ConnectionTracking(t *testing.T) {
	t.Parallel()

	pool := newStubPool(nil)

	pool.TrackConnection("a")
	pool.TrackConnection("b")
	pool.TrackConnection("a") // duplicate
	assert.Equal(t, 2, pool.ActiveConnections())

	pool.UntrackConnection("a")
	assert.Equal(t, 1, pool.ActiveConnections())

	// Untracking an absent or already-removed ID is a no-op.
	pool.UntrackConnection("a")
	pool.UntrackConnection("never-tracked")
	assert.Equal(t, 1, pool.ActiveConnections())
}

func TestPool_StatusSnapshot(t *testing.T) {
	t.Parallel()

	stub := &stubAnalyzer{name: "lint", kind: analysis.KindLint}
	pool := newStubPool(map[analysis.Kind]*stubAnalyzer{analysis.KindLint: stub})
	pool.TrackConnection("conn-1")

	require.NoError(t, pool.Initialize(context.Background()))

	w, err := pool.Get(context.Background(), analysis.KindLint)
	require.NoError(t, err)

	_, err = w.Run(context.Background(), analysis.Request{Code: "x", Language: "go"})
	require.NoError(t, err)

	status := pool.Status()

	assert.True(t, status.Initialized)
	assert.Equal(t, 1, status.ActiveConnections)

	snap, ok := status.Workers[analysis.KindLint]
	require.True(t, ok)
	assert.Equal(t, "lint", snap.Name)
	assert.Equal(t, worker.StatusReady, snap.Status)
	assert.Equal(t, int64(1), snap.Stats.TotalRuns)
	assert.False(t, snap.LastRunAt.IsZero())
}

func TestPool_ConcurrentGet(t *testing.T) {
	t.Parallel()

	stubs := map[analysis.Kind]*stubAnalyzer{
		analysis.KindLint:     {name: "lint", kind: analysis.KindLint},
		analysis.KindRefactor: {name: "refactor", kind: analysis.KindRefactor},
		analysis.KindTestgen:  {name: "testgen", kind: analysis.KindTestgen},
	}
	pool := newStubPool(stubs)

	kinds := analysis.Kinds()

	var wg sync.WaitGroup

	for i := range 30 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			kind := kinds[i%len(kinds)]

			w, err := pool.Get(context.Background(), kind)
			if !assert.NoError(t, err) {
				return
			}

			_, err = w.Run(context.Background(), analysis.Request{Code: "x"})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	// Each kind loaded exactly once despite concurrent Gets.
	for kind, stub := range stubs {
		assert.Equal(t, int64(1), stub.loads.Load(), "kind %s", kind)
	}

	var totalRuns int64
	for _, snap := range pool.Status().Workers {
		totalRuns += snap.Stats.TotalRuns
	}

	assert.Equal(t, int64(30), totalRuns)
}

func TestWorker_RunUpdatesStats(t *testing.T) {
	t.Parallel()

	stub := &stubAnalyzer{name: "lint", kind: analysis.KindLint, delay: time.Millisecond}
	w := worker.New(stub, testLogger())

	require.NoError(t, w.Initialize(context.Background()))

	for range 3 {
		_, err := w.Run(context.Background(), analysis.Request{Code: "x"})
		require.NoError(t, err)
	}

	snap := w.Snapshot()
	assert.Equal(t, int64(3), snap.Stats.TotalRuns)
	assert.Positive(t, snap.Stats.TotalTime)
	assert.Positive(t, snap.Stats.AvgTime)
	assert.Positive(t, snap.Stats.LastDuration)
}

func TestWorker_RunErrorDoesNotPoison(t *testing.T) {
	t.Parallel()

	stub := &stubAnalyzer{name: "lint", kind: analysis.KindLint, procErr: errors.New("boom")}
	w := worker.New(stub, testLogger())

	require.NoError(t, w.Initialize(context.Background()))

	_, err := w.Run(context.Background(), analysis.Request{Code: "x"})
	require.Error(t, err)
	assert.Equal(t, worker.StatusError, w.Status())

	stub.procErr = nil

	_, err = w.Run(context.Background(), analysis.Request{Code: "x"})
	require.NoError(t, err)
	assert.Equal(t, worker.StatusReady, w.Status())
	assert.Equal(t, int64(2), w.TotalRuns())
}

func TestWorker_InitializeRetryable(t *testing.T) {
	t.Parallel()

	stub := &stubAnalyzer{name: "lint", kind: analysis.KindLint}
	stub.failLoad.Store(true)

	w := worker.New(stub, testLogger())

	err := w.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, worker.StatusError, w.Status())

	stub.failLoad.Store(false)

	require.NoError(t, w.Initialize(context.Background()))
	assert.Equal(t, worker.StatusReady, w.Status())
}

func TestPool_DefaultFactories(t *testing.T) {
	t.Parallel()

	factories := worker.DefaultFactories(
		func() analysis.Analyzer { return &stubAnalyzer{name: "a", kind: analysis.KindLint} },
		func() analysis.Analyzer { return &stubAnalyzer{name: "b", kind: analysis.KindRefactor} },
		func() analysis.Analyzer { return &stubAnalyzer{name: "c", kind: analysis.KindTestgen} },
	)

	require.Len(t, factories, 3)

	for _, kind := range analysis.Kinds() {
		factory, ok := factories[kind]
		require.True(t, ok, "kind %s", kind)
		assert.Equal(t, kind, factory().Kind())
	}
}

func TestWorker_ConcurrentRunsSerialized(t *testing.T) {
	t.Parallel()

	stub := &stubAnalyzer{name: "lint", kind: analysis.KindLint, delay: 2 * time.Millisecond}
	w := worker.New(stub, testLogger())

	require.NoError(t, w.Initialize(context.Background()))

	var wg sync.WaitGroup

	start := time.Now()

	for range 5 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := w.Run(context.Background(), analysis.Request{Code: fmt.Sprintf("x-%d", time.Now().Nanosecond())})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	// Five serialized 2ms runs cannot finish faster than one.
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Millisecond)
	assert.Equal(t, int64(5), w.TotalRuns())
}
