package observers

import (
	"errors"
	"fmt"

	"github.com/cazayus/wshub/internal/domain/lifecycle"
	"github.com/cazayus/wshub/internal/infrastructure/config"
	"github.com/cazayus/wshub/internal/service"
	"go.uber.org/zap"
)

// Observer kinds accepted in a wiring file
const (
	KindAudit    = "audit"
	KindWarmup   = "warmup"
	KindEviction = "eviction"
)

var (
	ErrUnknownKind      = errors.New("unknown observer kind")
	ErrUnsupportedEvent = errors.New("observer kind does not handle event")
	ErrMissingDeps      = errors.New("missing observer dependency")
	ErrNoEviction       = errors.New("warmup observer wired without an eviction observer")
)

// Deps holds what the built observers act on
type Deps struct {
	Services *service.Registry
	Catalog  *service.Catalog
	Logger   *zap.Logger
}

// Build creates the observers named by w in wiring order, each restricted to
// the events its entry lists. Wiring a warmup observer without an eviction
// observer on close is rejected: services of closed workspaces would stay
// cached.
func Build(w *config.Wiring, deps Deps) ([]lifecycle.Observer, error) {
	if w == nil {
		return nil, nil
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	observers := make([]lifecycle.Observer, 0, len(w.Observers))
	for _, spec := range w.Observers {
		obs, err := build(spec, deps, logger.Named(spec.Name))
		if err != nil {
			return nil, fmt.Errorf("observer %q: %w", spec.Name, err)
		}

		restricted, err := restrict(obs, spec.Handles(config.EventOpened), spec.Handles(config.EventClosed))
		if err != nil {
			return nil, fmt.Errorf("observer %q: %w", spec.Name, err)
		}
		observers = append(observers, restricted)
	}

	if err := checkEviction(w); err != nil {
		return nil, err
	}
	return observers, nil
}

func build(spec config.ObserverSpec, deps Deps, logger *zap.Logger) (lifecycle.Observer, error) {
	switch spec.Kind {
	case KindAudit:
		return NewAudit(spec.Name, logger), nil

	case KindWarmup:
		if deps.Services == nil || deps.Catalog == nil {
			return nil, fmt.Errorf("%w: warmup needs a registry and catalog", ErrMissingDeps)
		}
		tags := make([]service.Tag, 0, len(spec.Services))
		for _, s := range spec.Services {
			tags = append(tags, service.Tag(s))
		}
		if len(tags) == 0 {
			tags = deps.Catalog.Tags()
		}
		for _, tag := range tags {
			if _, ok := deps.Catalog.Factory(tag); !ok {
				return nil, fmt.Errorf("%w: %s", service.ErrUnknownTag, tag)
			}
		}
		return NewWarmup(spec.Name, deps.Services, deps.Catalog, tags, logger), nil

	case KindEviction:
		if deps.Services == nil {
			return nil, fmt.Errorf("%w: eviction needs a registry", ErrMissingDeps)
		}
		return NewEviction(spec.Name, deps.Services, logger), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
}

func checkEviction(w *config.Wiring) error {
	var warmup string
	for _, spec := range w.Observers {
		if spec.Kind == KindEviction && spec.Handles(config.EventClosed) {
			return nil
		}
		if spec.Kind == KindWarmup && warmup == "" {
			warmup = spec.Name
		}
	}
	if warmup != "" {
		return fmt.Errorf("%w: %q", ErrNoEviction, warmup)
	}
	return nil
}

// DefaultWiring audits both events, warms every catalog service on open and
// evicts on close.
func DefaultWiring(catalog *service.Catalog) *config.Wiring {
	var services []string
	if catalog != nil {
		for _, tag := range catalog.Tags() {
			services = append(services, string(tag))
		}
	}

	return &config.Wiring{
		Observers: []config.ObserverSpec{
			{Name: AuditName, Kind: KindAudit, Events: []string{config.EventOpened, config.EventClosed}},
			{Name: WarmupName, Kind: KindWarmup, Events: []string{config.EventOpened}, Services: services},
			{Name: EvictionName, Kind: KindEviction, Events: []string{config.EventClosed}},
		},
	}
}

// Register adds observers to hub in order
func Register(hub *lifecycle.Hub, observers []lifecycle.Observer) error {
	for _, obs := range observers {
		if err := hub.Register(obs); err != nil {
			return err
		}
	}
	return nil
}

type openOnly struct{ lifecycle.OpenObserver }

type closeOnly struct{ lifecycle.CloseObserver }

// restrict hides the capabilities obs should not be called for
func restrict(obs lifecycle.Observer, opened, closed bool) (lifecycle.Observer, error) {
	opener, canOpen := obs.(lifecycle.OpenObserver)
	closer, canClose := obs.(lifecycle.CloseObserver)

	if opened && !canOpen {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, config.EventOpened)
	}
	if closed && !canClose {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, config.EventClosed)
	}

	switch {
	case opened && closed:
		return obs, nil
	case opened:
		if !canClose {
			return obs, nil
		}
		return openOnly{opener}, nil
	case closed:
		if !canOpen {
			return obs, nil
		}
		return closeOnly{closer}, nil
	default:
		return nil, fmt.Errorf("%w: no events", ErrUnsupportedEvent)
	}
}
