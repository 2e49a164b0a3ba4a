package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cazayus/wshub/internal/infrastructure/monitoring"
	"github.com/cazayus/wshub/internal/shared/id"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// recorder collects "<observer>:<event>" entries in call order
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, entry)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func recording(name string, rec *recorder, openErr error) *Funcs {
	return &Funcs{
		ObserverName: name,
		Opened: func(ctx context.Context, ws id.WorkspaceID) error {
			rec.add(name + ":opened")
			return openErr
		},
		Closed: func(ctx context.Context, ws id.WorkspaceID) error {
			rec.add(name + ":closed")
			return nil
		},
	}
}

// openOnly implements only OpenObserver
type openOnly struct {
	rec *recorder
}

func (o *openOnly) Name() string { return "open-only" }

func (o *openOnly) OnOpened(ctx context.Context, ws id.WorkspaceID) error {
	o.rec.add("open-only:opened")
	return nil
}

// nameOnly implements no capability
type nameOnly struct{}

func (nameOnly) Name() string { return "inert" }

// mockObserver is a testify mock implementing both capabilities
type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) Name() string { return "mock" }

func (m *mockObserver) OnOpened(ctx context.Context, ws id.WorkspaceID) error {
	return m.Called(ctx, ws).Error(0)
}

func (m *mockObserver) OnClosed(ctx context.Context, ws id.WorkspaceID) error {
	return m.Called(ctx, ws).Error(0)
}

func TestRegister(t *testing.T) {
	h := NewHub()
	rec := &recorder{}

	obs := recording("o1", rec, nil)
	require.NoError(t, h.Register(obs))

	assert.ErrorIs(t, h.Register(obs), ErrAlreadyRegistered)
	assert.ErrorIs(t, h.Register(recording("o1", rec, nil)), ErrAlreadyRegistered)
	assert.ErrorIs(t, h.Register(nameOnly{}), ErrNoCapability)
	assert.ErrorIs(t, h.Register(nil), ErrNoCapability)
	assert.ErrorIs(t, h.Register((*Funcs)(nil)), ErrNoCapability)

	require.NoError(t, h.Register(&openOnly{rec: rec}))
	assert.Equal(t, []string{"o1", "open-only"}, h.Observers())
}

func TestRegisterAfterStart(t *testing.T) {
	h := NewHub()
	require.NoError(t, h.NotifyOpened(context.Background(), id.NewWorkspaceID()))

	err := h.Register(recording("late", &recorder{}, nil))
	assert.ErrorIs(t, err, ErrHubStarted)
}

func TestNotifyOpenedOrder(t *testing.T) {
	h := NewHub()
	rec := &recorder{}
	for _, name := range []string{"o1", "o2", "o3"} {
		require.NoError(t, h.Register(recording(name, rec, nil)))
	}

	ws := id.NewWorkspaceID()
	require.NoError(t, h.NotifyOpened(context.Background(), ws))
	assert.Equal(t, []string{"o1:opened", "o2:opened", "o3:opened"}, rec.all())

	require.NoError(t, h.NotifyClosed(context.Background(), ws))
	assert.Equal(t, []string{
		"o1:opened", "o2:opened", "o3:opened",
		"o1:closed", "o2:closed", "o3:closed",
	}, rec.all())
}

func TestPartialFailureIsolation(t *testing.T) {
	h := NewHub()
	rec := &recorder{}
	boom := errors.New("boom")

	require.NoError(t, h.Register(recording("o1", rec, nil)))
	require.NoError(t, h.Register(recording("o2", rec, boom)))
	require.NoError(t, h.Register(recording("o3", rec, nil)))

	ws := id.NewWorkspaceID()
	err := h.NotifyOpened(context.Background(), ws)
	require.Error(t, err)

	// O1 and O3 still ran
	assert.Equal(t, []string{"o1:opened", "o2:opened", "o3:opened"}, rec.all())

	assert.Contains(t, err.Error(), `"o2"`)
	assert.ErrorIs(t, err, boom)

	failures := ObserverErrors(err)
	require.Len(t, failures, 1)
	assert.Equal(t, "o2", failures[0].Observer)
	assert.Equal(t, EventOpened, failures[0].Event)
	assert.Equal(t, ws, failures[0].Workspace)

	// The workspace is open despite the failure
	assert.True(t, h.IsOpen(ws))
	assert.Equal(t, uint64(1), h.Stats().FailuresTotal)
}

func TestMultipleFailuresAggregate(t *testing.T) {
	h := NewHub()
	rec := &recorder{}

	require.NoError(t, h.Register(recording("a", rec, errors.New("a failed"))))
	require.NoError(t, h.Register(recording("b", rec, nil)))
	require.NoError(t, h.Register(recording("c", rec, errors.New("c failed"))))

	err := h.NotifyOpened(context.Background(), id.NewWorkspaceID())
	failures := ObserverErrors(err)
	require.Len(t, failures, 2)
	assert.Equal(t, "a", failures[0].Observer)
	assert.Equal(t, "c", failures[1].Observer)
}

func TestObserverPanicIsolated(t *testing.T) {
	h := NewHub()
	rec := &recorder{}

	require.NoError(t, h.Register(&Funcs{
		ObserverName: "panicky",
		Opened: func(ctx context.Context, ws id.WorkspaceID) error {
			panic("kaboom")
		},
	}))
	require.NoError(t, h.Register(recording("after", rec, nil)))

	err := h.NotifyOpened(context.Background(), id.NewWorkspaceID())
	assert.ErrorIs(t, err, ErrObserverPanic)
	assert.Equal(t, []string{"after:opened"}, rec.all())
}

func TestCapabilitySubset(t *testing.T) {
	h := NewHub()
	rec := &recorder{}
	require.NoError(t, h.Register(&openOnly{rec: rec}))

	ws := id.NewWorkspaceID()
	require.NoError(t, h.NotifyOpened(context.Background(), ws))
	require.NoError(t, h.NotifyClosed(context.Background(), ws))

	assert.Equal(t, []string{"open-only:opened"}, rec.all())
}

func TestNotifyIdentityErrors(t *testing.T) {
	h := NewHub()
	ctx := context.Background()
	ws := id.NewWorkspaceID()

	assert.ErrorIs(t, h.NotifyOpened(ctx, ""), ErrInvalidIdentity)

	require.NoError(t, h.NotifyOpened(ctx, ws))
	assert.ErrorIs(t, h.NotifyOpened(ctx, ws), ErrAlreadyOpen)

	require.NoError(t, h.NotifyClosed(ctx, ws))
	assert.ErrorIs(t, h.NotifyClosed(ctx, ws), ErrUnknownIdentity)
	assert.ErrorIs(t, h.NotifyOpened(ctx, ws), ErrIdentityClosed)

	assert.ErrorIs(t, h.NotifyClosed(ctx, id.NewWorkspaceID()), ErrUnknownIdentity)
	assert.ErrorIs(t, h.NotifyClosed(ctx, id.NewWorkspaceID()), id.ErrUnknownWorkspace)
}

func TestStateDuringClose(t *testing.T) {
	h := NewHub()
	ws := id.NewWorkspaceID()

	var openDuringClose bool
	var stateDuringClose State
	require.NoError(t, h.Register(&Funcs{
		ObserverName: "state-check",
		Closed: func(ctx context.Context, ws id.WorkspaceID) error {
			openDuringClose = h.IsOpen(ws)
			stateDuringClose, _ = h.State(ws)
			return nil
		},
	}))

	require.NoError(t, h.NotifyOpened(context.Background(), ws))
	state, ok := h.State(ws)
	require.True(t, ok)
	assert.Equal(t, StateOpen, state)

	require.NoError(t, h.NotifyClosed(context.Background(), ws))
	assert.False(t, openDuringClose)
	assert.Equal(t, StateClosing, stateDuringClose)

	state, _ = h.State(ws)
	assert.Equal(t, StateClosed, state)

	_, ok = h.State(id.NewWorkspaceID())
	assert.False(t, ok)
}

func TestCloseWaitsForOpenDispatch(t *testing.T) {
	h := NewHub()
	rec := &recorder{}

	entered := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, h.Register(&Funcs{
		ObserverName: "slow",
		Opened: func(ctx context.Context, ws id.WorkspaceID) error {
			close(entered)
			<-release
			rec.add("slow:opened")
			return nil
		},
		Closed: func(ctx context.Context, ws id.WorkspaceID) error {
			rec.add("slow:closed")
			return nil
		},
	}))

	ws := id.NewWorkspaceID()
	openDone := make(chan error, 1)
	go func() { openDone <- h.NotifyOpened(context.Background(), ws) }()
	<-entered

	closeDone := make(chan error, 1)
	go func() { closeDone <- h.NotifyClosed(context.Background(), ws) }()

	select {
	case <-closeDone:
		t.Fatal("close finished before open dispatch completed")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-openDone)
	require.NoError(t, <-closeDone)
	assert.Equal(t, []string{"slow:opened", "slow:closed"}, rec.all())
}

func TestCloseFromOpenObserver(t *testing.T) {
	h := NewHub()
	rec := &recorder{}

	var closeErr error
	require.NoError(t, h.Register(&Funcs{
		ObserverName: "abort",
		Opened: func(ctx context.Context, ws id.WorkspaceID) error {
			rec.add("abort:opened")
			closeErr = h.NotifyClosed(ctx, ws)
			return nil
		},
		Closed: func(ctx context.Context, ws id.WorkspaceID) error {
			rec.add("abort:closed")
			return nil
		},
	}))
	require.NoError(t, h.Register(recording("after", rec, nil)))

	ws := id.NewWorkspaceID()
	done := make(chan error, 1)
	go func() { done <- h.NotifyOpened(context.Background(), ws) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("NotifyOpened did not return")
	}

	require.NoError(t, closeErr)
	assert.Equal(t, []string{"abort:opened", "after:opened", "abort:closed", "after:closed"}, rec.all())

	state, _ := h.State(ws)
	assert.Equal(t, StateClosed, state)
	assert.Equal(t, uint64(1), h.Stats().ClosedTotal)
	assert.ErrorIs(t, h.NotifyClosed(context.Background(), ws), ErrUnknownIdentity)
}

func TestReopenWhileClosing(t *testing.T) {
	h := NewHub()

	var reopenErr error
	require.NoError(t, h.Register(&Funcs{
		ObserverName: "reopen",
		Closed: func(ctx context.Context, ws id.WorkspaceID) error {
			reopenErr = h.NotifyOpened(ctx, ws)
			return nil
		},
	}))

	ctx := context.Background()
	ws := id.NewWorkspaceID()
	require.NoError(t, h.NotifyOpened(ctx, ws))
	require.NoError(t, h.NotifyClosed(ctx, ws))

	assert.ErrorIs(t, reopenErr, ErrIdentityClosed)
}

func TestConcurrentWorkspaces(t *testing.T) {
	h := NewHub()
	var calls sync.Map
	require.NoError(t, h.Register(&Funcs{
		ObserverName: "counter",
		Opened: func(ctx context.Context, ws id.WorkspaceID) error {
			if _, loaded := calls.LoadOrStore(ws, true); loaded {
				t.Errorf("observer notified twice for %s", ws)
			}
			return nil
		},
	}))

	const n = 50
	ids := make([]id.WorkspaceID, n)
	for i := range ids {
		ids[i] = id.NewWorkspaceID()
	}

	var wg sync.WaitGroup
	for _, ws := range ids {
		wg.Add(1)
		go func(ws id.WorkspaceID) {
			defer wg.Done()
			assert.NoError(t, h.NotifyOpened(context.Background(), ws))
		}(ws)
	}
	wg.Wait()

	open := h.Open()
	require.Len(t, open, n)
	for i := 1; i < len(open); i++ {
		assert.Less(t, string(open[i-1]), string(open[i]))
	}
}

func TestMockObserver(t *testing.T) {
	h := NewHub()
	m := &mockObserver{}
	ws := id.NewWorkspaceID()
	ctx := context.Background()

	m.On("OnOpened", ctx, ws).Return(nil).Once()
	m.On("OnClosed", ctx, ws).Return(errors.New("flush failed")).Once()

	require.NoError(t, h.Register(m))
	require.NoError(t, h.NotifyOpened(ctx, ws))

	err := h.NotifyClosed(ctx, ws)
	require.Error(t, err)
	assert.Equal(t, EventClosed, ObserverErrors(err)[0].Event)

	// A failing close observer still retires the identity
	assert.False(t, h.IsOpen(ws))
	m.AssertExpectations(t)
}

func TestStatsAndMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	h := NewHub().WithMetrics(metrics)
	rec := &recorder{}
	require.NoError(t, h.Register(recording("ok", rec, nil)))
	require.NoError(t, h.Register(recording("bad", rec, errors.New("nope"))))

	ctx := context.Background()
	ws1, ws2 := id.NewWorkspaceID(), id.NewWorkspaceID()
	_ = h.NotifyOpened(ctx, ws1)
	_ = h.NotifyOpened(ctx, ws2)
	_ = h.NotifyClosed(ctx, ws1)

	stats := h.Stats()
	assert.Equal(t, 2, stats.Observers)
	assert.Equal(t, 1, stats.OpenWorkspaces)
	assert.Equal(t, 1, stats.Closed)
	assert.Equal(t, uint64(2), stats.OpenedTotal)
	assert.Equal(t, uint64(1), stats.ClosedTotal)
	assert.Equal(t, uint64(2), stats.FailuresTotal)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.WorkspacesOpen))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.LifecycleEvents.WithLabelValues("opened")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ObserverFailures.WithLabelValues("bad", "opened")))
}
