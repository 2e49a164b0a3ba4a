// Package server provides the HTTP API of the workspace hub.
//
// Routes:
//   - GET /health: hub, registry and catalog statistics
//   - GET /workspaces: open workspaces with their cached services
//   - GET /workspaces/:id: one workspace, including closed ones
//   - GET /workspaces/:id/documents: stored .properties documents; with
//     ?path= one document, its text and inspection result
//   - PUT /workspaces/:id/documents?path=: store the body as a document,
//     then run the save pass for that path over every open workspace
//   - GET /metrics: Prometheus exposition
//
// Middleware stack: recovery, request logging (zap), CORS, per-IP rate
// limiting and request metrics. Workspaces are opened and closed by the
// host process, never over HTTP.
//
// Example Usage:
//
//	srv := server.NewServer(cfg, server.Deps{Hub: hub, Registry: registry, Saver: saver, Metrics: metrics})
//	go srv.Run()
//	defer srv.Shutdown(ctx)
package server
