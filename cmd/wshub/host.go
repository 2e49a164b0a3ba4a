package main

import (
	"context"
	"fmt"

	"github.com/cazayus/wshub/internal/domain/lifecycle"
	"github.com/cazayus/wshub/internal/domain/observers"
	"github.com/cazayus/wshub/internal/domain/project"
	"github.com/cazayus/wshub/internal/domain/properties"
	"github.com/cazayus/wshub/internal/infrastructure/config"
	"github.com/cazayus/wshub/internal/infrastructure/logging"
	"github.com/cazayus/wshub/internal/infrastructure/monitoring"
	"github.com/cazayus/wshub/internal/server"
	"github.com/cazayus/wshub/internal/service"
	"github.com/cazayus/wshub/internal/shared/id"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// host plays the role of the application that opens and closes workspaces
type host struct {
	hub      *lifecycle.Hub
	registry *service.Registry
	catalog  *service.Catalog
	saver    *properties.Saver
	metrics  *monitoring.Metrics
	server   *server.Server
	logger   *zap.Logger
}

func newHost(cfg *config.Config, logger *logging.Logger) (*host, error) {
	metrics := monitoring.NewMetrics()

	style, err := properties.StyleFromConfig(cfg.Properties)
	if err != nil {
		return nil, err
	}

	catalog := service.NewCatalog()
	if err := catalog.Register(project.Tag, project.Factory); err != nil {
		return nil, err
	}
	if err := catalog.Register(properties.Tag, properties.NewFactory(style)); err != nil {
		return nil, err
	}

	hub := lifecycle.NewHub().
		WithLogger(logger.Component("lifecycle")).
		WithMetrics(metrics)

	registry := service.NewRegistry().
		WithLiveness(hub).
		WithDisposal(cfg.Registry.DisposeOnEvict).
		WithLogger(logger.Component("registry")).
		WithMetrics(metrics)

	wiring := observers.DefaultWiring(catalog)
	if cfg.Wiring.File != "" {
		w, err := config.LoadWiring(cfg.Wiring.File)
		if err != nil {
			return nil, err
		}
		wiring = w
	}

	built, err := observers.Build(wiring, observers.Deps{
		Services: registry,
		Catalog:  catalog,
		Logger:   logger.Component("observers"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build observers: %w", err)
	}
	if err := observers.Register(hub, built); err != nil {
		return nil, fmt.Errorf("failed to register observers: %w", err)
	}
	logger.Info("observers registered", zap.Strings("observers", hub.Observers()))

	saver := properties.NewSaver(hub, registry).
		WithLogger(logger.Component("properties")).
		WithMetrics(metrics)

	srv := server.NewServer(cfg, server.Deps{
		Hub:      hub,
		Registry: registry,
		Catalog:  catalog,
		Metrics:  metrics,
		Saver:    saver,
		Logger:   logger.Component("http"),
	})

	return &host{
		hub:      hub,
		registry: registry,
		catalog:  catalog,
		saver:    saver,
		metrics:  metrics,
		server:   srv,
		logger:   logger.Component("host"),
	}, nil
}

// openWorkspaces opens n fresh workspaces. Observer failures do not stop a
// workspace from opening; they are returned together.
func (h *host) openWorkspaces(ctx context.Context, n int) ([]id.WorkspaceID, error) {
	var (
		opened []id.WorkspaceID
		errs   error
	)

	for i := 0; i < n; i++ {
		ws := id.NewWorkspaceID()
		if err := h.hub.NotifyOpened(ctx, ws); err != nil {
			errs = multierr.Append(errs, err)
		}
		if h.hub.IsOpen(ws) {
			opened = append(opened, ws)
		}
	}
	return opened, errs
}

// closeAll closes every open workspace, oldest first
func (h *host) closeAll(ctx context.Context) error {
	var errs error
	for _, ws := range h.hub.Open() {
		if err := h.hub.NotifyClosed(ctx, ws); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	stats := h.hub.Stats()
	h.logger.Info("workspaces closed",
		zap.Uint64("closed_total", stats.ClosedTotal),
		zap.Int("services_cached", h.registry.Count()),
	)
	return errs
}
