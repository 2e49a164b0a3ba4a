package properties

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cazayus/wshub/internal/infrastructure/monitoring"
	"github.com/cazayus/wshub/internal/service"
	"github.com/cazayus/wshub/internal/shared/id"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Save outcomes, also used as metric labels
const (
	OutcomeClean   = "clean"
	OutcomeFixed   = "fixed"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Reasons a workspace is skipped by a save pass
const (
	SkipClosing    = "closing"
	SkipNotWarmed  = "not initialized"
	SkipDisposed   = "disposed"
	SkipAbsent     = "not in workspace"
	SkipMalformed  = "malformed"
	SkipInProgress = "in progress"
)

// Workspaces lists the workspaces a save pass visits. The lifecycle Hub
// implements it.
type Workspaces interface {
	Open() []id.WorkspaceID
	IsOpen(ws id.WorkspaceID) bool
}

// ServiceLookup returns cached services without constructing them
type ServiceLookup interface {
	Lookup(ws id.WorkspaceID, tag service.Tag) (any, bool)
}

// FixHook is called after a save action rewrote a document
type FixHook func(ctx context.Context, ws id.WorkspaceID, path string)

// Outcome is what a save pass did in one workspace
type Outcome struct {
	Workspace string   `json:"workspace"`
	Outcome   string   `json:"outcome"`
	Reason    string   `json:"reason,omitempty"`
	Problem   *Problem `json:"problem,omitempty"`
	Fixed     []string `json:"fixed,omitempty"`
}

// Report collects the outcomes of one save pass, in workspace open order
type Report struct {
	Path     string    `json:"path"`
	Outcomes []Outcome `json:"outcomes"`
}

// Fixed returns the number of documents rewritten across workspaces
func (r Report) Fixed() int {
	n := 0
	for _, o := range r.Outcomes {
		n += len(o.Fixed)
	}
	return n
}

type runKey struct {
	ws   id.WorkspaceID
	path string
}

// Saver runs the unsorted-properties inspection and its fix when a document
// is saved, in every open workspace holding it
type Saver struct {
	workspaces Workspaces
	services   ServiceLookup
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	hook       FixHook

	mu      sync.Mutex
	running map[runKey]struct{} // Protected by mu
}

// NewSaver creates a save pass over workspaces whose properties services
// are found in services
func NewSaver(workspaces Workspaces, services ServiceLookup) *Saver {
	return &Saver{
		workspaces: workspaces,
		services:   services,
		logger:     zap.NewNop(),
		running:    make(map[runKey]struct{}),
	}
}

// WithLogger sets the logger
func (s *Saver) WithLogger(logger *zap.Logger) *Saver {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithMetrics records one save action per visited workspace
func (s *Saver) WithMetrics(metrics *monitoring.Metrics) *Saver {
	s.metrics = metrics
	return s
}

// WithFixHook sets the hook called for each rewritten document. A hook that
// saves the same document again is skipped for that workspace.
func (s *Saver) WithFixHook(hook FixHook) *Saver {
	s.hook = hook
	return s
}

// BeforeSave inspects path in every open workspace and applies the fix
// where the document is unsorted. Workspaces that are closing, have no
// properties service yet, do not hold the document or are already
// processing it are skipped. Failures are returned together; the report
// covers every visited workspace.
func (s *Saver) BeforeSave(ctx context.Context, path string) (Report, error) {
	p, err := cleanPath(path)
	if err != nil {
		return Report{Path: path}, err
	}
	report := Report{Path: p}

	var errs error
	for _, ws := range s.workspaces.Open() {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		out, err := s.process(ctx, ws, report.Path)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("workspace %s: %w", ws, err))
		}
		if s.metrics != nil {
			s.metrics.RecordSaveAction(out.Outcome, len(out.Fixed))
		}
		report.Outcomes = append(report.Outcomes, out)
	}
	return report, errs
}

func (s *Saver) process(ctx context.Context, ws id.WorkspaceID, path string) (Outcome, error) {
	out := Outcome{Workspace: ws.String(), Outcome: OutcomeSkipped}
	skip := func(reason string) (Outcome, error) {
		out.Reason = reason
		s.logger.Debug("save action skipped",
			zap.Stringer("workspace", ws),
			zap.String("path", path),
			zap.String("reason", reason),
		)
		return out, nil
	}

	if !s.workspaces.IsOpen(ws) {
		return skip(SkipClosing)
	}
	inst, ok := s.services.Lookup(ws, Tag)
	if !ok {
		return skip(SkipNotWarmed)
	}
	svc, ok := inst.(*Service)
	if !ok {
		out.Outcome = OutcomeFailed
		return out, fmt.Errorf("%w: %s is %T", service.ErrTypeMismatch, Tag, inst)
	}
	if svc.Disposed() {
		return skip(SkipDisposed)
	}
	if !svc.Has(path) {
		return skip(SkipAbsent)
	}

	key := runKey{ws: ws, path: path}
	if !s.enter(key) {
		return skip(SkipInProgress)
	}
	defer s.leave(key)

	problem, err := svc.Inspect(path)
	switch {
	case errors.Is(err, ErrMalformed):
		return skip(SkipMalformed)
	case err != nil:
		out.Outcome = OutcomeFailed
		return out, err
	case problem == nil:
		out.Outcome = OutcomeClean
		return out, nil
	}

	out.Problem = problem
	fixed, err := svc.Apply(problem)
	out.Fixed = fixed
	if err != nil {
		out.Outcome = OutcomeFailed
		return out, err
	}
	out.Outcome = OutcomeFixed

	s.logger.Info("properties fixed",
		zap.Stringer("workspace", ws),
		zap.String("path", path),
		zap.String("problem", problem.Message),
		zap.Strings("fixed", fixed),
	)
	if s.hook != nil {
		for _, p := range fixed {
			s.hook(ctx, ws, p)
		}
	}
	return out, nil
}

// enter marks key as running; it fails when key already is
func (s *Saver) enter(key runKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.running[key]; busy {
		return false
	}
	s.running[key] = struct{}{}
	return true
}

func (s *Saver) leave(key runKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, key)
}
