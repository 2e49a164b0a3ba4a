package lifecycle

import (
	"errors"
	"fmt"

	"github.com/cazayus/wshub/internal/shared/id"
	"go.uber.org/multierr"
)

var (
	ErrAlreadyRegistered = errors.New("observer already registered")
	ErrNoCapability      = errors.New("observer handles no lifecycle event")
	ErrHubStarted        = errors.New("observers cannot be registered after the first notification")
	ErrInvalidIdentity   = errors.New("empty workspace identity")
	ErrAlreadyOpen       = errors.New("workspace already open")
	ErrIdentityClosed    = errors.New("workspace identity already closed")
	ErrObserverPanic     = errors.New("observer panicked")

	// ErrUnknownIdentity is shared with the service registry so callers can
	// match either with errors.Is.
	ErrUnknownIdentity = id.ErrUnknownWorkspace
)

// ObserverError records one observer failing during a notification
type ObserverError struct {
	Observer  string
	Event     Event
	Workspace id.WorkspaceID
	Err       error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("observer %q failed on %s %s: %v", e.Observer, e.Event, e.Workspace, e.Err)
}

func (e *ObserverError) Unwrap() error {
	return e.Err
}

// ObserverErrors splits an aggregate notification error into its per-observer parts
func ObserverErrors(err error) []*ObserverError {
	var out []*ObserverError
	for _, e := range multierr.Errors(err) {
		var oerr *ObserverError
		if errors.As(e, &oerr) {
			out = append(out, oerr)
		}
	}
	return out
}
