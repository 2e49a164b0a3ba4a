package observers

import (
	"context"
	"fmt"

	"github.com/cazayus/wshub/internal/service"
	"github.com/cazayus/wshub/internal/shared/id"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Default observer names
const (
	WarmupName   = "service-warmup"
	EvictionName = "service-eviction"
	AuditName    = "workspace-audit"
)

// ServiceCreator constructs or returns cached services
type ServiceCreator interface {
	GetOrCreate(ctx context.Context, ws id.WorkspaceID, tag service.Tag, factory service.Factory) (any, error)
}

// ServiceEvicter drops every service of a workspace
type ServiceEvicter interface {
	EvictAll(ws id.WorkspaceID) (int, error)
}

// FactorySource resolves tags to factories
type FactorySource interface {
	Factory(tag service.Tag) (service.Factory, bool)
}

// Warmup constructs services eagerly when a workspace opens
type Warmup struct {
	name     string
	services ServiceCreator
	catalog  FactorySource
	tags     []service.Tag
	logger   *zap.Logger
}

// NewWarmup creates a warm-up observer for the given tags
func NewWarmup(name string, services ServiceCreator, catalog FactorySource, tags []service.Tag, logger *zap.Logger) *Warmup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmup{
		name:     name,
		services: services,
		catalog:  catalog,
		tags:     append([]service.Tag(nil), tags...),
		logger:   logger,
	}
}

func (w *Warmup) Name() string { return w.name }

// Tags returns the services this observer constructs
func (w *Warmup) Tags() []service.Tag {
	return append([]service.Tag(nil), w.tags...)
}

// OnOpened constructs every configured service. All tags are attempted;
// failures are returned together.
func (w *Warmup) OnOpened(ctx context.Context, ws id.WorkspaceID) error {
	var errs error

	for _, tag := range w.tags {
		factory, ok := w.catalog.Factory(tag)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s", service.ErrUnknownTag, tag))
			continue
		}

		if _, err := w.services.GetOrCreate(ctx, ws, tag, factory); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		w.logger.Debug("service warmed",
			zap.Stringer("workspace", ws),
			zap.String("service", string(tag)),
		)
	}
	return errs
}
