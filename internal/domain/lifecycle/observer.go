package lifecycle

import (
	"context"

	"github.com/cazayus/wshub/internal/shared/id"
)

// Event identifies a lifecycle transition
type Event string

const (
	EventOpened Event = "opened"
	EventClosed Event = "closed"
)

// Observer is anything registered with the Hub. It must implement at least
// one of OpenObserver and CloseObserver.
type Observer interface {
	Name() string
}

// OpenObserver is notified when a workspace opens
type OpenObserver interface {
	Observer
	OnOpened(ctx context.Context, ws id.WorkspaceID) error
}

// CloseObserver is notified when a workspace closes
type CloseObserver interface {
	Observer
	OnClosed(ctx context.Context, ws id.WorkspaceID) error
}

// Funcs adapts plain functions to an observer handling both events.
// A nil function is a no-op for its event.
type Funcs struct {
	ObserverName string
	Opened       func(ctx context.Context, ws id.WorkspaceID) error
	Closed       func(ctx context.Context, ws id.WorkspaceID) error
}

func (f *Funcs) Name() string { return f.ObserverName }

// OnOpened calls f.Opened if set
func (f *Funcs) OnOpened(ctx context.Context, ws id.WorkspaceID) error {
	if f.Opened == nil {
		return nil
	}
	return f.Opened(ctx, ws)
}

// OnClosed calls f.Closed if set
func (f *Funcs) OnClosed(ctx context.Context, ws id.WorkspaceID) error {
	if f.Closed == nil {
		return nil
	}
	return f.Closed(ctx, ws)
}

// registration is one entry of the ordered observer list
type registration struct {
	name   string
	opener OpenObserver
	closer CloseObserver
}

func newRegistration(obs Observer) (registration, bool) {
	reg := registration{name: obs.Name()}
	reg.opener, _ = obs.(OpenObserver)
	reg.closer, _ = obs.(CloseObserver)
	return reg, reg.opener != nil || reg.closer != nil
}

// handler returns the callback for event, or nil if the observer ignores it
func (r registration) handler(event Event) func(context.Context, id.WorkspaceID) error {
	switch event {
	case EventOpened:
		if r.opener != nil {
			return r.opener.OnOpened
		}
	case EventClosed:
		if r.closer != nil {
			return r.closer.OnClosed
		}
	}
	return nil
}
