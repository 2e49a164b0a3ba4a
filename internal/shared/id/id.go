// Package id provides workspace identity generation.
//
// Workspace identities are prefixed ULIDs (ws_01J...):
//   - Unique and never reused: a closed workspace keeps its identity forever
//   - K-sortable: the ULID timestamp is the moment the identity was minted
//   - Debuggable: the prefix makes log lines readable
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// WorkspaceID identifies one open workspace instance
type WorkspaceID string

// WorkspacePrefix is prepended to every workspace ULID
const WorkspacePrefix = "ws"

var (
	// ErrInvalidWorkspaceID is returned when a string is not a well-formed workspace identity
	ErrInvalidWorkspaceID = errors.New("invalid workspace id")

	// ErrUnknownWorkspace marks operations on an identity that was never
	// opened or has already been closed. Closed identities are never reused.
	ErrUnknownWorkspace = errors.New("unknown workspace identity")
)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewWorkspaceID returns a workspace identity minted from g
func (g *Generator) NewWorkspaceID() WorkspaceID {
	return WorkspaceID(g.GenerateWithPrefix(WorkspacePrefix))
}

// ============================================================================
// Workspace IDs
// ============================================================================

// NewWorkspaceID generates a new workspace identity
func NewWorkspaceID() WorkspaceID {
	return Default().NewWorkspaceID()
}

// ParseWorkspaceID validates s and returns it as a WorkspaceID
func ParseWorkspaceID(s string) (WorkspaceID, error) {
	prefix, raw, ok := strings.Cut(s, "_")
	if !ok || prefix != WorkspacePrefix || !IsValid(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidWorkspaceID, s)
	}
	return WorkspaceID(s), nil
}

func (id WorkspaceID) String() string { return string(id) }

// IsZero reports whether the identity is empty
func (id WorkspaceID) IsZero() bool { return id == "" }

// Timestamp returns the time at which the identity was minted
func (id WorkspaceID) Timestamp() (time.Time, error) {
	_, raw, ok := strings.Cut(string(id), "_")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidWorkspaceID, string(id))
	}
	return Timestamp(raw)
}

// ============================================================================
// Validation
// ============================================================================

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

// Parse parses a ULID string
func Parse(id string) (ulid.ULID, error) {
	return ulid.ParseStrict(id)
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
