// Package lifecycle tracks open workspaces and dispatches opened/closed
// events to observers.
//
// Observers are registered once at startup, in order, and are notified
// synchronously in that order. An observer failing (error or panic) does not
// stop the others: failures are collected as *ObserverError values and
// returned to the caller of NotifyOpened/NotifyClosed as one aggregate error
// (see ObserverErrors).
//
// Identities are never reused. Once NotifyClosed has been called for an
// identity, the Hub rejects any later NotifyOpened for it, and IsOpen
// reports false from the moment closing begins.
//
// Example Usage:
//
//	hub := lifecycle.NewHub().WithLogger(logger)
//	hub.Register(observers.NewWarmup(registry, catalog, []service.Tag{"project"}))
//	hub.Register(observers.NewEviction(registry))
//
//	ws := id.NewWorkspaceID()
//	if err := hub.NotifyOpened(ctx, ws); err != nil {
//		for _, oerr := range lifecycle.ObserverErrors(err) {
//			log.Printf("%s failed: %v", oerr.Observer, oerr.Err)
//		}
//	}
package lifecycle
