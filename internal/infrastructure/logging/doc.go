// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components receive a *zap.Logger scoped with Component, so every line
// carries a "component" field (hub, registry, observer names).
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	hub := lifecycle.NewHub().WithLogger(logger.Component("hub"))
//	logger.Info("workspace opened", zap.Stringer("workspace", ws))
package logging
