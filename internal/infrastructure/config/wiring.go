package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Lifecycle event names accepted in a wiring file.
const (
	EventOpened = "opened"
	EventClosed = "closed"
)

// ErrInvalidWiring is returned for structurally invalid wiring files.
var ErrInvalidWiring = errors.New("invalid observer wiring")

// Wiring is the static observer configuration established once at startup.
type Wiring struct {
	Observers []ObserverSpec `yaml:"observers" toml:"observers"`
}

// ObserverSpec names one observer and the events it handles.
type ObserverSpec struct {
	Name     string   `yaml:"name" toml:"name"`
	Kind     string   `yaml:"kind" toml:"kind"`
	Events   []string `yaml:"events" toml:"events"`
	Services []string `yaml:"services,omitempty" toml:"services,omitempty"`
}

// Handles reports whether the entry lists the given event.
func (s ObserverSpec) Handles(event string) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}

// LoadWiring reads and validates a wiring file. The format is chosen by
// extension: .yaml/.yml or .toml.
func LoadWiring(path string) (*Wiring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wiring file: %w", err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	w, err := ParseWiring(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// ParseWiring decodes wiring data in the given format ("yaml", "yml" or "toml").
func ParseWiring(data []byte, format string) (*Wiring, error) {
	var w Wiring

	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("failed to parse YAML wiring: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("failed to parse TOML wiring: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidWiring, format)
	}

	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Validate checks names are present and unique and events are known.
func (w *Wiring) Validate() error {
	seen := make(map[string]bool, len(w.Observers))

	for i, spec := range w.Observers {
		if spec.Name == "" {
			return fmt.Errorf("%w: observer %d has no name", ErrInvalidWiring, i)
		}
		if seen[spec.Name] {
			return fmt.Errorf("%w: duplicate observer %q", ErrInvalidWiring, spec.Name)
		}
		seen[spec.Name] = true

		if spec.Kind == "" {
			return fmt.Errorf("%w: observer %q has no kind", ErrInvalidWiring, spec.Name)
		}
		if len(spec.Events) == 0 {
			return fmt.Errorf("%w: observer %q handles no events", ErrInvalidWiring, spec.Name)
		}
		for _, event := range spec.Events {
			if event != EventOpened && event != EventClosed {
				return fmt.Errorf("%w: observer %q: unknown event %q", ErrInvalidWiring, spec.Name, event)
			}
		}
	}
	return nil
}
