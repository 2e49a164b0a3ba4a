package service

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/cazayus/wshub/internal/infrastructure/monitoring"
	"github.com/cazayus/wshub/internal/shared/id"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Tag names a service type within a workspace
type Tag string

// Key identifies one cached service instance
type Key struct {
	Workspace id.WorkspaceID
	Tag       Tag
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Workspace, k.Tag)
}

// flightKey is the singleflight group key; NUL cannot appear in a ULID
func (k Key) flightKey() string {
	return string(k.Workspace) + "\x00" + string(k.Tag)
}

// Factory constructs a service instance for a workspace
type Factory func(ctx context.Context, ws id.WorkspaceID) (any, error)

// Liveness reports whether a workspace may receive new services.
// The lifecycle Hub implements it.
type Liveness interface {
	IsOpen(ws id.WorkspaceID) bool
}

// Registry caches one service instance per (workspace, tag)
type Registry struct {
	mu       sync.RWMutex
	entries  map[id.WorkspaceID]map[Tag]any // Protected by mu
	evicted  map[id.WorkspaceID]struct{}    // Protected by mu
	counts   Stats                          // Protected by mu
	flights  singleflight.Group
	liveness Liveness
	dispose  bool
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// Stats contains registry statistics
type Stats struct {
	Entries       int            `json:"entries"`
	Workspaces    int            `json:"workspaces"`
	ByTag         map[string]int `json:"by_tag"`
	Constructions uint64         `json:"constructions_total"`
	Failures      uint64         `json:"construction_failures_total"`
	Evictions     uint64         `json:"evictions_total"`
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[id.WorkspaceID]map[Tag]any),
		evicted: make(map[id.WorkspaceID]struct{}),
		logger:  zap.NewNop(),
	}
}

// WithLiveness rejects construction for workspaces l does not report open
func (r *Registry) WithLiveness(l Liveness) *Registry {
	r.liveness = l
	return r
}

// WithDisposal closes evicted instances implementing io.Closer
func (r *Registry) WithDisposal(enabled bool) *Registry {
	r.dispose = enabled
	return r
}

// WithLogger sets the registry logger
func (r *Registry) WithLogger(logger *zap.Logger) *Registry {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithMetrics adds metrics tracking to the registry
func (r *Registry) WithMetrics(metrics *monitoring.Metrics) *Registry {
	r.metrics = metrics
	return r
}

// GetOrCreate returns the instance cached for (ws, tag), constructing it
// with factory on first request. Concurrent callers for the same key share
// one construction; callers for other keys are not blocked by it.
func (r *Registry) GetOrCreate(ctx context.Context, ws id.WorkspaceID, tag Tag, factory Factory) (any, error) {
	if tag == "" {
		return nil, ErrInvalidTag
	}
	if factory == nil {
		return nil, ErrNilFactory
	}
	key := Key{Workspace: ws, Tag: tag}

	if inst, ok, err := r.lookup(key); err != nil || ok {
		return inst, err
	}

	inst, err, _ := r.flights.Do(key.flightKey(), func() (any, error) {
		// A flight that finished just before this one may have stored it
		if inst, ok, err := r.lookup(key); err != nil || ok {
			return inst, err
		}
		return r.construct(ctx, key, factory)
	})
	return inst, err
}

// lookup returns the cached instance, or ErrUnknownIdentity if ws is dead
func (r *Registry) lookup(key Key) (any, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.checkAlive(key.Workspace); err != nil {
		return nil, false, err
	}
	inst, ok := r.entries[key.Workspace][key.Tag]
	return inst, ok, nil
}

// checkAlive must be called with mu held
func (r *Registry) checkAlive(ws id.WorkspaceID) error {
	if _, dead := r.evicted[ws]; dead {
		return fmt.Errorf("%w: %s", ErrUnknownIdentity, ws)
	}
	if r.liveness != nil && !r.liveness.IsOpen(ws) {
		return fmt.Errorf("%w: %s", ErrUnknownIdentity, ws)
	}
	return nil
}

// construct runs factory and stores the result unless ws died meanwhile
func (r *Registry) construct(ctx context.Context, key Key, factory Factory) (any, error) {
	start := time.Now()
	inst, err := safeCall(ctx, key.Workspace, factory)
	if err == nil && isNil(inst) {
		err = ErrNilConstructed
	}
	duration := time.Since(start)

	if r.metrics != nil {
		r.metrics.RecordServiceConstruction(string(key.Tag), duration, err)
	}

	if err != nil {
		r.mu.Lock()
		r.counts.Failures++
		r.mu.Unlock()

		r.logger.Warn("service construction failed",
			zap.Stringer("workspace", key.Workspace),
			zap.String("service", string(key.Tag)),
			zap.Error(err),
		)
		return nil, &ConstructionError{Key: key, Err: err}
	}

	r.mu.Lock()
	if aliveErr := r.checkAlive(key.Workspace); aliveErr != nil {
		r.mu.Unlock()

		// Evicted while constructing: never resurrect an entry
		r.logger.Info("discarding service built for closed workspace",
			zap.Stringer("workspace", key.Workspace),
			zap.String("service", string(key.Tag)),
		)
		if r.dispose {
			if closeErr := closeInstance(inst); closeErr != nil {
				r.logger.Warn("service disposal failed", zap.Stringer("key", key), zap.Error(closeErr))
			}
		}
		return nil, aliveErr
	}

	tags, ok := r.entries[key.Workspace]
	if !ok {
		tags = make(map[Tag]any)
		r.entries[key.Workspace] = tags
	}
	tags[key.Tag] = inst
	r.counts.Constructions++
	total := r.countLocked()
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetServiceEntries(total)
	}
	r.logger.Debug("service constructed",
		zap.Stringer("workspace", key.Workspace),
		zap.String("service", string(key.Tag)),
		zap.Duration("duration", duration),
	)
	return inst, nil
}

// isNil reports untyped nil and typed nil pointers, maps, funcs, slices and
// channels, which Get[T] wraps into a non-nil any
func isNil(inst any) bool {
	if inst == nil {
		return true
	}
	v := reflect.ValueOf(inst)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// safeCall runs factory, converting a panic into an error
func safeCall(ctx context.Context, ws id.WorkspaceID, factory Factory) (inst any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			inst = nil
			err = fmt.Errorf("%w: %v", ErrFactoryPanic, rec)
		}
	}()
	return factory(ctx, ws)
}

// Lookup returns the cached instance for (ws, tag) without constructing.
// It still answers while ws is closing, until EvictAll removes the entry.
func (r *Registry) Lookup(ws id.WorkspaceID, tag Tag) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.entries[ws][tag]
	return inst, ok
}

// EvictAll removes every instance cached for ws and marks ws dead, so no
// later GetOrCreate can recreate one. It returns the number of evicted
// instances and, with disposal enabled, the aggregated Close errors.
func (r *Registry) EvictAll(ws id.WorkspaceID) (int, error) {
	r.mu.Lock()
	tags := r.entries[ws]
	delete(r.entries, ws)
	r.evicted[ws] = struct{}{}
	r.counts.Evictions += uint64(len(tags))
	total := r.countLocked()
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordServiceEvictions(len(tags))
		r.metrics.SetServiceEntries(total)
	}
	r.logger.Debug("workspace services evicted",
		zap.Stringer("workspace", ws),
		zap.Int("count", len(tags)),
	)

	if !r.dispose {
		return len(tags), nil
	}

	var errs error
	for _, tag := range sortedTags(tags) {
		if err := closeInstance(tags[tag]); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", Key{Workspace: ws, Tag: tag}, err))
		}
	}
	return len(tags), errs
}

func closeInstance(inst any) error {
	if closer, ok := inst.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func sortedTags(tags map[Tag]any) []Tag {
	out := make([]Tag, 0, len(tags))
	for tag := range tags {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns the number of cached instances
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countLocked()
}

func (r *Registry) countLocked() int {
	total := 0
	for _, tags := range r.entries {
		total += len(tags)
	}
	return total
}

// Contains reports whether an instance is cached for (ws, tag)
func (r *Registry) Contains(ws id.WorkspaceID, tag Tag) bool {
	_, ok := r.Lookup(ws, tag)
	return ok
}

// Tags returns the tags cached for ws in sorted order
func (r *Registry) Tags(ws id.WorkspaceID) []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedTags(r.entries[ws])
}

// Stats returns registry statistics
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := r.counts
	stats.Workspaces = len(r.entries)
	stats.ByTag = make(map[string]int)
	for _, tags := range r.entries {
		for tag := range tags {
			stats.Entries++
			stats.ByTag[string(tag)]++
		}
	}
	return stats
}

// Get is a typed GetOrCreate
func Get[T any](ctx context.Context, r *Registry, ws id.WorkspaceID, tag Tag, factory func(ctx context.Context, ws id.WorkspaceID) (T, error)) (T, error) {
	var zero T

	inst, err := r.GetOrCreate(ctx, ws, tag, func(ctx context.Context, ws id.WorkspaceID) (any, error) {
		return factory(ctx, ws)
	})
	if err != nil {
		return zero, err
	}

	typed, ok := inst.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T", ErrTypeMismatch, Key{Workspace: ws, Tag: tag}, inst)
	}
	return typed, nil
}
