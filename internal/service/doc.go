// Package service provides the per-workspace service registry.
//
// The registry lazily constructs one instance per (workspace, tag) key and
// reuses it until the workspace closes. It replaces host-managed project
// services with an explicit factory and an explicit eviction call.
//
// Components:
//   - Registry: keyed instance cache with single construction per key
//   - Catalog: startup-time mapping of tags to factories
//   - Get: typed wrapper over Registry.GetOrCreate
//
// Guarantees:
//   - Concurrent GetOrCreate calls for one key run the factory once and all
//     receive the same instance
//   - Calls for different keys never wait on each other's factories
//   - A failed factory caches nothing; the next call retries
//   - After EvictAll(ws), GetOrCreate for ws fails with ErrUnknownIdentity,
//     including constructions that were in flight during the eviction
//
// Example Usage:
//
//	registry := service.NewRegistry().WithLiveness(hub)
//	svc, err := service.Get(ctx, registry, ws, "project", project.New)
//	...
//	registry.EvictAll(ws)
package service
