// Package project provides the per-workspace project service warmed when a
// workspace opens.
package project

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cazayus/wshub/internal/shared/id"
)

// Tag is the service registry tag of the project service
const Tag = "project"

// ErrDisposed is returned by operations on a closed service
var ErrDisposed = errors.New("project service disposed")

// Service holds per-workspace project state
type Service struct {
	workspace id.WorkspaceID
	createdAt time.Time

	mu         sync.RWMutex
	attributes map[string]string
	disposed   bool
}

// New constructs the project service for ws. Its signature matches
// service.Factory once wrapped with service.Get or Factory.
func New(ctx context.Context, ws id.WorkspaceID) (*Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ws.IsZero() {
		return nil, id.ErrInvalidWorkspaceID
	}
	return &Service{
		workspace:  ws,
		createdAt:  time.Now(),
		attributes: make(map[string]string),
	}, nil
}

// Factory adapts New to the untyped registry factory signature
func Factory(ctx context.Context, ws id.WorkspaceID) (any, error) {
	return New(ctx, ws)
}

// Workspace returns the owning workspace
func (s *Service) Workspace() id.WorkspaceID { return s.workspace }

// CreatedAt returns the construction time
func (s *Service) CreatedAt() time.Time { return s.createdAt }

// Set stores a project attribute
func (s *Service) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return ErrDisposed
	}
	s.attributes[key] = value
	return nil
}

// Get reads a project attribute
func (s *Service) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.attributes[key]
	return v, ok
}

// Disposed reports whether Close has been called
func (s *Service) Disposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}

// Close releases the service. It is idempotent.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disposed = true
	s.attributes = nil
	return nil
}
