package lifecycle

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/cazayus/wshub/internal/infrastructure/monitoring"
	"github.com/cazayus/wshub/internal/shared/id"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// State represents workspace lifecycle states
type State string

const (
	StateOpen    State = "open"
	StateClosing State = "closing"
	StateClosed  State = "closed"
)

// workspace is the Hub's record of one identity. Closed records are kept so
// the identity can never be opened again.
type workspace struct {
	opened   chan struct{} // Closed once the opened dispatch has finished
	opening  bool          // Protected by Hub.mu
	deferred bool          // Close requested from inside the opened dispatch; protected by Hub.mu
	state    State         // Protected by Hub.mu
	openedAt time.Time
}

// dispatchKey marks the context handed to observers with the identity and
// event being dispatched
type dispatchKey struct{}

type dispatching struct {
	ws    id.WorkspaceID
	event Event
}

// dispatchingOpen reports whether ctx comes from the opened dispatch of ws
func dispatchingOpen(ctx context.Context, ws id.WorkspaceID) bool {
	d, ok := ctx.Value(dispatchKey{}).(dispatching)
	return ok && d.ws == ws && d.event == EventOpened
}

// Hub tracks open workspaces and notifies observers of lifecycle events
type Hub struct {
	mu         sync.RWMutex
	observers  []registration                // Protected by mu
	names      map[string]struct{}           // Protected by mu
	started    bool                          // Protected by mu
	workspaces map[id.WorkspaceID]*workspace // Protected by mu
	counts     Stats                         // Protected by mu
	logger     *zap.Logger
	metrics    *monitoring.Metrics
}

// Stats contains hub statistics
type Stats struct {
	Observers      int    `json:"observers"`
	OpenWorkspaces int    `json:"open_workspaces"`
	Closing        int    `json:"closing_workspaces"`
	Closed         int    `json:"closed_workspaces"`
	OpenedTotal    uint64 `json:"opened_total"`
	ClosedTotal    uint64 `json:"closed_total"`
	FailuresTotal  uint64 `json:"observer_failures_total"`
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		names:      make(map[string]struct{}),
		workspaces: make(map[id.WorkspaceID]*workspace),
		logger:     zap.NewNop(),
	}
}

// WithLogger sets the hub logger
func (h *Hub) WithLogger(logger *zap.Logger) *Hub {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithMetrics adds metrics tracking to the hub
func (h *Hub) WithMetrics(metrics *monitoring.Metrics) *Hub {
	h.metrics = metrics
	return h
}

// Register appends an observer. Observer names must be unique; registering
// the same observer twice fails with ErrAlreadyRegistered.
func (h *Hub) Register(obs Observer) error {
	if isNil(obs) {
		return fmt.Errorf("%w: nil observer", ErrNoCapability)
	}
	reg, ok := newRegistration(obs)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoCapability, reg.name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return fmt.Errorf("%w: %q", ErrHubStarted, reg.name)
	}
	if _, exists := h.names[reg.name]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, reg.name)
	}

	h.names[reg.name] = struct{}{}
	h.observers = append(h.observers, reg)

	h.logger.Debug("observer registered",
		zap.String("observer", reg.name),
		zap.Bool("opened", reg.opener != nil),
		zap.Bool("closed", reg.closer != nil),
	)
	return nil
}

// isNil also catches typed nil pointers, whose Name would panic
func isNil(obs Observer) bool {
	if obs == nil {
		return true
	}
	v := reflect.ValueOf(obs)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// NotifyOpened marks ws open and runs every OnOpened in registration order.
// All observers run even if some fail; the failures are returned together.
// If an observer closes ws during the dispatch, the close runs right after
// the last OnOpened and its failures are returned here as well.
func (h *Hub) NotifyOpened(ctx context.Context, ws id.WorkspaceID) error {
	if ws.IsZero() {
		return ErrInvalidIdentity
	}

	h.mu.Lock()
	if w, exists := h.workspaces[ws]; exists {
		state := w.state
		h.mu.Unlock()
		if state != StateOpen {
			return fmt.Errorf("%w: %s", ErrIdentityClosed, ws)
		}
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, ws)
	}

	w := &workspace{
		opened:   make(chan struct{}),
		opening:  true,
		state:    StateOpen,
		openedAt: time.Now(),
	}
	h.workspaces[ws] = w
	h.started = true
	h.counts.OpenedTotal++
	observers := h.observers
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordWorkspaceOpened()
	}
	h.logger.Info("workspace opened", zap.Stringer("workspace", ws))

	err := h.dispatch(ctx, EventOpened, ws, observers)

	h.mu.Lock()
	w.opening = false
	deferred := w.deferred
	h.mu.Unlock()
	close(w.opened)

	if deferred {
		err = multierr.Append(err, h.finishClose(ctx, ws, w, observers))
	}
	return err
}

// NotifyClosed runs every OnClosed in registration order and retires ws.
// IsOpen reports false for ws before the first observer runs. A close from
// another goroutine waits for an in-flight opened dispatch; a close issued by
// an OnOpened observer of ws (with the ctx it received) is handed to
// NotifyOpened and returns nil immediately.
func (h *Hub) NotifyClosed(ctx context.Context, ws id.WorkspaceID) error {
	h.mu.Lock()
	w, exists := h.workspaces[ws]
	if !exists || w.state != StateOpen {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownIdentity, ws)
	}
	w.state = StateClosing
	h.started = true
	observers := h.observers

	if w.opening && dispatchingOpen(ctx, ws) {
		w.deferred = true
		h.mu.Unlock()
		h.logger.Debug("close deferred until opened dispatch completes", zap.Stringer("workspace", ws))
		return nil
	}
	h.mu.Unlock()

	<-w.opened
	return h.finishClose(ctx, ws, w, observers)
}

// finishClose dispatches closed and retires ws
func (h *Hub) finishClose(ctx context.Context, ws id.WorkspaceID, w *workspace, observers []registration) error {
	err := h.dispatch(ctx, EventClosed, ws, observers)

	h.mu.Lock()
	w.state = StateClosed
	h.counts.ClosedTotal++
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordWorkspaceClosed()
	}
	h.logger.Info("workspace closed",
		zap.Stringer("workspace", ws),
		zap.Duration("lifetime", time.Since(w.openedAt)),
	)
	return err
}

// dispatch calls the observers handling event, in order, isolating failures
func (h *Hub) dispatch(ctx context.Context, event Event, ws id.WorkspaceID, observers []registration) error {
	var errs error
	ctx = context.WithValue(ctx, dispatchKey{}, dispatching{ws: ws, event: event})

	for _, reg := range observers {
		handle := reg.handler(event)
		if handle == nil {
			continue
		}

		start := time.Now()
		err := invoke(ctx, ws, handle)
		duration := time.Since(start)

		if h.metrics != nil {
			h.metrics.RecordObserverCall(reg.name, string(event), duration, err != nil)
		}
		if err == nil {
			continue
		}

		h.logger.Warn("observer failed",
			zap.String("observer", reg.name),
			zap.String("event", string(event)),
			zap.Stringer("workspace", ws),
			zap.Error(err),
		)
		errs = multierr.Append(errs, &ObserverError{
			Observer:  reg.name,
			Event:     event,
			Workspace: ws,
			Err:       err,
		})
	}

	if failures := len(multierr.Errors(errs)); failures > 0 {
		h.mu.Lock()
		h.counts.FailuresTotal += uint64(failures)
		h.mu.Unlock()
	}
	if h.metrics != nil {
		h.metrics.RecordLifecycleEvent(string(event))
	}
	return errs
}

// invoke runs one observer callback, converting a panic into an error
func invoke(ctx context.Context, ws id.WorkspaceID, handle func(context.Context, id.WorkspaceID) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrObserverPanic, r)
		}
	}()
	return handle(ctx, ws)
}

// IsOpen reports whether ws is open and not closing
func (h *Hub) IsOpen(ws id.WorkspaceID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	w, ok := h.workspaces[ws]
	return ok && w.state == StateOpen
}

// State returns the lifecycle state of ws, false if the hub never saw it
func (h *Hub) State(ws id.WorkspaceID) (State, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	w, ok := h.workspaces[ws]
	if !ok {
		return "", false
	}
	return w.state, true
}

// Open returns the open workspaces, oldest first
func (h *Hub) Open() []id.WorkspaceID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	open := make([]id.WorkspaceID, 0, len(h.workspaces))
	for ws, w := range h.workspaces {
		if w.state == StateOpen {
			open = append(open, ws)
		}
	}
	// ULID identities sort by creation time
	sort.Slice(open, func(i, j int) bool { return open[i] < open[j] })
	return open
}

// Observers returns observer names in registration order
func (h *Hub) Observers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, len(h.observers))
	for i, reg := range h.observers {
		names[i] = reg.name
	}
	return names
}

// Stats returns hub statistics
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := h.counts
	stats.Observers = len(h.observers)
	for _, w := range h.workspaces {
		switch w.state {
		case StateOpen:
			stats.OpenWorkspaces++
		case StateClosing:
			stats.Closing++
		case StateClosed:
			stats.Closed++
		}
	}
	return stats
}
