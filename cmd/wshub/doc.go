// Package main is the entry point for the workspace hub.
//
// The process acts as the host: it opens demo workspaces at startup, which
// drives the registered observers (audit, service warm-up, eviction), and
// closes them again on shutdown. The HTTP API exposes the hub and service
// registry, and accepts .properties document saves, which run the save pass
// that keeps every open workspace's copy sorted.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Optional observer wiring file (YAML or TOML)
//
// Usage:
//
//	# Three demo workspaces, default wiring
//	./wshub -workspaces 3
//
//	# Development mode with a wiring file
//	./wshub -dev -wiring observers.yaml
//
// Signals:
//   - SIGINT, SIGTERM: close every open workspace, then stop the server
package main
