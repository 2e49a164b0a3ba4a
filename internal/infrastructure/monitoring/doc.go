/*
Package monitoring provides metrics collection for the lifecycle hub and the
service registry.

# Overview

Metrics are registered on a per-instance Prometheus registry, so a process
may hold several collectors without duplicate registration panics.

# Features

- Workspace lifecycle metrics (open gauge, events, observer failures and latency)
- Service registry metrics (constructions, construction latency, entries, evictions)
- HTTP request metrics for the introspection server
- Go runtime and process collectors

# Usage

	metrics := monitoring.NewMetrics()
	hub := lifecycle.NewHub().WithMetrics(metrics)
	registry := service.NewRegistry().WithMetrics(metrics)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
