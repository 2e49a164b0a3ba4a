package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cazayus/wshub/internal/infrastructure/monitoring"
	"github.com/cazayus/wshub/internal/shared/id"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type testService struct {
	ws     id.WorkspaceID
	serial int64
	closed atomic.Bool
	err    error
}

func (s *testService) Close() error {
	s.closed.Store(true)
	return s.err
}

// countingFactory returns a factory building *testService and its call counter
func countingFactory(delay time.Duration) (Factory, *atomic.Int64) {
	var calls atomic.Int64
	return func(ctx context.Context, ws id.WorkspaceID) (any, error) {
		n := calls.Add(1)
		time.Sleep(delay)
		return &testService{ws: ws, serial: n}, nil
	}, &calls
}

type fakeLiveness struct {
	mu   sync.Mutex
	open map[id.WorkspaceID]bool
}

func (f *fakeLiveness) IsOpen(ws id.WorkspaceID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open[ws]
}

func (f *fakeLiveness) set(ws id.WorkspaceID, open bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open[ws] = open
}

func TestGetOrCreateCaches(t *testing.T) {
	r := NewRegistry()
	factory, calls := countingFactory(0)
	ws := id.NewWorkspaceID()
	ctx := context.Background()

	first, err := r.GetOrCreate(ctx, ws, "svc", factory)
	require.NoError(t, err)

	second, err := r.GetOrCreate(ctx, ws, "svc", factory)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), calls.Load())
	assert.True(t, r.Contains(ws, "svc"))
	assert.Equal(t, 1, r.Count())
}

func TestSingleConstruction(t *testing.T) {
	r := NewRegistry()
	factory, calls := countingFactory(20 * time.Millisecond)
	ws := id.NewWorkspaceID()

	const n = 100
	results := make([]any, n)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			inst, err := r.GetOrCreate(context.Background(), ws, "svc", factory)
			assert.NoError(t, err)
			results[i] = inst
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestIsolationAcrossKeys(t *testing.T) {
	r := NewRegistry()
	wsA, wsB := id.NewWorkspaceID(), id.NewWorkspaceID()

	release := make(chan struct{})
	entered := make(chan struct{})
	var slowCalls atomic.Int64
	slow := func(ctx context.Context, ws id.WorkspaceID) (any, error) {
		slowCalls.Add(1)
		close(entered)
		<-release
		return &testService{ws: ws}, nil
	}
	fast, fastCalls := countingFactory(0)

	slowDone := make(chan error, 1)
	go func() {
		_, err := r.GetOrCreate(context.Background(), wsA, "svc", slow)
		slowDone <- err
	}()
	<-entered

	// Same tag on another workspace, and another tag on the same workspace
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := r.GetOrCreate(context.Background(), wsB, "svc", fast)
		assert.NoError(t, err)
		_, err = r.GetOrCreate(context.Background(), wsA, "other", fast)
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unrelated keys blocked behind a slow factory")
	}

	close(release)
	require.NoError(t, <-slowDone)
	assert.Equal(t, int64(1), slowCalls.Load())
	assert.Equal(t, int64(2), fastCalls.Load())
	assert.Equal(t, 3, r.Count())
}

func TestConstructionFailureRetries(t *testing.T) {
	r := NewRegistry()
	ws := id.NewWorkspaceID()
	boom := errors.New("boom")

	var calls atomic.Int64
	factory := func(ctx context.Context, ws id.WorkspaceID) (any, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return &testService{ws: ws}, nil
	}

	_, err := r.GetOrCreate(context.Background(), ws, "svc", factory)
	require.Error(t, err)

	var cerr *ConstructionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, Key{Workspace: ws, Tag: "svc"}, cerr.Key)
	assert.ErrorIs(t, err, boom)
	assert.False(t, r.Contains(ws, "svc"))

	inst, err := r.GetOrCreate(context.Background(), ws, "svc", factory)
	require.NoError(t, err)
	assert.NotNil(t, inst)
	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, uint64(1), r.Stats().Failures)
}

func TestFactoryPanicAndNil(t *testing.T) {
	r := NewRegistry()
	ws := id.NewWorkspaceID()

	_, err := r.GetOrCreate(context.Background(), ws, "panics", func(ctx context.Context, ws id.WorkspaceID) (any, error) {
		panic("kaboom")
	})
	assert.ErrorIs(t, err, ErrFactoryPanic)

	_, err = r.GetOrCreate(context.Background(), ws, "nil", func(ctx context.Context, ws id.WorkspaceID) (any, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrNilConstructed)
	assert.Equal(t, 0, r.Count())
}

func TestGetTypedNilIsNotCached(t *testing.T) {
	type widget struct{}
	r := NewRegistry()
	ws := id.NewWorkspaceID()

	got, err := Get(context.Background(), r, ws, "widget", func(ctx context.Context, ws id.WorkspaceID) (*widget, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrNilConstructed)
	assert.Nil(t, got)
	assert.False(t, r.Contains(ws, "widget"))

	// A later call retries construction
	got, err = Get(context.Background(), r, ws, "widget", func(ctx context.Context, ws id.WorkspaceID) (*widget, error) {
		return &widget{}, nil
	})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.True(t, r.Contains(ws, "widget"))
}

func TestInvalidArguments(t *testing.T) {
	r := NewRegistry()
	factory, _ := countingFactory(0)

	_, err := r.GetOrCreate(context.Background(), id.NewWorkspaceID(), "", factory)
	assert.ErrorIs(t, err, ErrInvalidTag)

	_, err = r.GetOrCreate(context.Background(), id.NewWorkspaceID(), "svc", nil)
	assert.ErrorIs(t, err, ErrNilFactory)
}

func TestEvictionFinality(t *testing.T) {
	r := NewRegistry()
	factory, calls := countingFactory(0)
	ws := id.NewWorkspaceID()
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, ws, "svc", factory)
	require.NoError(t, err)
	_, err = r.GetOrCreate(ctx, ws, "other", factory)
	require.NoError(t, err)

	evicted, err := r.EvictAll(ws)
	require.NoError(t, err)
	assert.Equal(t, 2, evicted)
	assert.False(t, r.Contains(ws, "svc"))
	assert.Equal(t, 0, r.Count())

	_, err = r.GetOrCreate(ctx, ws, "svc", factory)
	assert.ErrorIs(t, err, ErrUnknownIdentity)
	assert.Equal(t, int64(2), calls.Load())

	// A new identity is unaffected
	_, err = r.GetOrCreate(ctx, id.NewWorkspaceID(), "svc", factory)
	assert.NoError(t, err)
}

func TestEvictUnknownIsNoop(t *testing.T) {
	r := NewRegistry()

	evicted, err := r.EvictAll(id.NewWorkspaceID())
	assert.NoError(t, err)
	assert.Zero(t, evicted)
}

func TestEvictDuringConstruction(t *testing.T) {
	r := NewRegistry().WithDisposal(true)
	ws := id.NewWorkspaceID()

	entered := make(chan struct{})
	release := make(chan struct{})
	built := &testService{ws: ws}
	factory := func(ctx context.Context, ws id.WorkspaceID) (any, error) {
		close(entered)
		<-release
		return built, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := r.GetOrCreate(context.Background(), ws, "svc", factory)
		done <- err
	}()
	<-entered

	_, err := r.EvictAll(ws)
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-done, ErrUnknownIdentity)
	assert.False(t, r.Contains(ws, "svc"))
	assert.True(t, built.closed.Load(), "orphaned instance should be disposed")
}

func TestLiveness(t *testing.T) {
	live := &fakeLiveness{open: make(map[id.WorkspaceID]bool)}
	r := NewRegistry().WithLiveness(live)
	factory, calls := countingFactory(0)
	ws := id.NewWorkspaceID()
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, ws, "svc", factory)
	assert.ErrorIs(t, err, ErrUnknownIdentity)
	assert.Zero(t, calls.Load())

	live.set(ws, true)
	inst, err := r.GetOrCreate(ctx, ws, "svc", factory)
	require.NoError(t, err)

	// Closing: no new constructions, existing entries still visible to Lookup
	live.set(ws, false)
	_, err = r.GetOrCreate(ctx, ws, "other", factory)
	assert.ErrorIs(t, err, ErrUnknownIdentity)

	found, ok := r.Lookup(ws, "svc")
	require.True(t, ok)
	assert.Same(t, inst, found)
}

func TestEvictAllDisposal(t *testing.T) {
	ws := id.NewWorkspaceID()
	ctx := context.Background()
	failing := &testService{ws: ws, err: errors.New("flush failed")}
	healthy := &testService{ws: ws}

	build := func(s *testService) Factory {
		return func(ctx context.Context, ws id.WorkspaceID) (any, error) { return s, nil }
	}

	t.Run("disabled", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.GetOrCreate(ctx, ws, "a", build(&testService{}))
		require.NoError(t, err)

		_, err = r.EvictAll(ws)
		assert.NoError(t, err)
	})

	t.Run("enabled", func(t *testing.T) {
		r := NewRegistry().WithDisposal(true)
		_, err := r.GetOrCreate(ctx, ws, "a", build(failing))
		require.NoError(t, err)
		_, err = r.GetOrCreate(ctx, ws, "b", build(healthy))
		require.NoError(t, err)
		_, err = r.GetOrCreate(ctx, ws, "c", func(ctx context.Context, ws id.WorkspaceID) (any, error) {
			return "not a closer", nil
		})
		require.NoError(t, err)

		evicted, err := r.EvictAll(ws)
		assert.Equal(t, 3, evicted)
		require.Error(t, err)
		assert.Len(t, multierr.Errors(err), 1)
		assert.Contains(t, err.Error(), "flush failed")
		assert.True(t, failing.closed.Load())
		assert.True(t, healthy.closed.Load())
	})
}

func TestGetTyped(t *testing.T) {
	r := NewRegistry()
	ws := id.NewWorkspaceID()
	ctx := context.Background()

	svc, err := Get(ctx, r, ws, "svc", func(ctx context.Context, ws id.WorkspaceID) (*testService, error) {
		return &testService{ws: ws}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, ws, svc.ws)

	again, err := Get(ctx, r, ws, "svc", func(ctx context.Context, ws id.WorkspaceID) (*testService, error) {
		t.Fatal("factory should not run for a cached key")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Same(t, svc, again)

	_, err = Get(ctx, r, ws, "svc", func(ctx context.Context, ws id.WorkspaceID) (string, error) {
		return "", nil
	})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestStatsAndMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	r := NewRegistry().WithMetrics(metrics)
	factory, _ := countingFactory(0)
	ctx := context.Background()
	ws1, ws2 := id.NewWorkspaceID(), id.NewWorkspaceID()

	for _, ws := range []id.WorkspaceID{ws1, ws2} {
		_, err := r.GetOrCreate(ctx, ws, "project", factory)
		require.NoError(t, err)
	}
	_, err := r.GetOrCreate(ctx, ws1, "index", factory)
	require.NoError(t, err)

	stats := r.Stats()
	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, 2, stats.Workspaces)
	assert.Equal(t, map[string]int{"project": 2, "index": 1}, stats.ByTag)
	assert.Equal(t, uint64(3), stats.Constructions)
	assert.Equal(t, []Tag{"index", "project"}, r.Tags(ws1))

	_, err = r.EvictAll(ws1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), r.Stats().Evictions)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ServiceConstructions.WithLabelValues("project", "success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ServiceEvictions))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ServiceEntries))
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	factory, _ := countingFactory(0)

	require.NoError(t, c.Register("project", factory))
	require.NoError(t, c.Register("index", factory))

	assert.ErrorIs(t, c.Register("project", factory), ErrDuplicateTag)
	assert.ErrorIs(t, c.Register("", factory), ErrInvalidTag)
	assert.ErrorIs(t, c.Register("nil", nil), ErrNilFactory)

	assert.Equal(t, []Tag{"index", "project"}, c.Tags())

	_, ok := c.Factory("project")
	assert.True(t, ok)
	_, ok = c.Factory("missing")
	assert.False(t, ok)
}
