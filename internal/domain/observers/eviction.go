package observers

import (
	"context"

	"github.com/cazayus/wshub/internal/shared/id"
	"go.uber.org/zap"
)

// Eviction drops a workspace's services when it closes
type Eviction struct {
	name     string
	services ServiceEvicter
	logger   *zap.Logger
}

// NewEviction creates an eviction observer
func NewEviction(name string, services ServiceEvicter, logger *zap.Logger) *Eviction {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Eviction{name: name, services: services, logger: logger}
}

func (e *Eviction) Name() string { return e.name }

// OnClosed evicts every service cached for ws
func (e *Eviction) OnClosed(ctx context.Context, ws id.WorkspaceID) error {
	count, err := e.services.EvictAll(ws)
	e.logger.Debug("services evicted",
		zap.Stringer("workspace", ws),
		zap.Int("count", count),
	)
	return err
}
