// Package observers provides the lifecycle observers wired to the Hub at
// startup and builds them from the static wiring configuration.
//
// Kinds:
//   - audit: logs opened/closed events
//   - warmup: constructs the listed services when a workspace opens
//   - eviction: evicts every service of a workspace when it closes
//
// Each observer is restricted to the events its wiring entry lists, so a
// warmup observer wired only to "opened" is never called on close.
package observers
