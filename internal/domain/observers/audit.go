package observers

import (
	"context"
	"time"

	"github.com/cazayus/wshub/internal/shared/id"
	"go.uber.org/zap"
)

// Audit logs workspace lifecycle events
type Audit struct {
	name   string
	logger *zap.Logger
}

// NewAudit creates an audit observer
func NewAudit(name string, logger *zap.Logger) *Audit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Audit{name: name, logger: logger}
}

func (a *Audit) Name() string { return a.name }

func (a *Audit) OnOpened(ctx context.Context, ws id.WorkspaceID) error {
	a.logger.Info("workspace opened", zap.Stringer("workspace", ws))
	return nil
}

func (a *Audit) OnClosed(ctx context.Context, ws id.WorkspaceID) error {
	fields := []zap.Field{zap.Stringer("workspace", ws)}
	if opened, err := ws.Timestamp(); err == nil {
		fields = append(fields, zap.Duration("lifetime", time.Since(opened)))
	}
	a.logger.Info("workspace closed", fields...)
	return nil
}
