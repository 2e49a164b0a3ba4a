package properties

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/cazayus/wshub/internal/service"
	"github.com/cazayus/wshub/internal/shared/id"
	"go.uber.org/multierr"
	"golang.org/x/text/language"
)

// Tag is the service registry tag of the properties service
const Tag = "properties"

// Extension of the documents the service accepts
const Extension = ".properties"

var (
	ErrDisposed        = errors.New("properties service disposed")
	ErrNotProperties   = errors.New("not a .properties document")
	ErrUnknownDocument = errors.New("unknown document")
)

// Problem is the result of inspecting one document
type Problem struct {
	Path    string   `json:"path"`
	Bundle  string   `json:"bundle"`
	Message string   `json:"message"`
	Fix     []string `json:"fix"`

	// force rewrites documents of Fix that are already sorted
	force bool
}

type document struct {
	text  string
	stamp uint64
}

// Service holds the .properties documents of one workspace
type Service struct {
	workspace id.WorkspaceID
	style     Style

	mu       sync.RWMutex
	docs     map[string]*document // Protected by mu
	stamp    uint64               // Protected by mu
	disposed bool                 // Protected by mu
}

// New constructs the properties service for ws
func New(ctx context.Context, ws id.WorkspaceID, style Style) (*Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ws.IsZero() {
		return nil, id.ErrInvalidWorkspaceID
	}
	return &Service{
		workspace: ws,
		style:     style,
		docs:      make(map[string]*document),
	}, nil
}

// Constructor returns New bound to style, for service.Get
func Constructor(style Style) func(ctx context.Context, ws id.WorkspaceID) (*Service, error) {
	return func(ctx context.Context, ws id.WorkspaceID) (*Service, error) {
		return New(ctx, ws, style)
	}
}

// NewFactory adapts Constructor to the untyped registry factory signature
func NewFactory(style Style) service.Factory {
	construct := Constructor(style)
	return func(ctx context.Context, ws id.WorkspaceID) (any, error) {
		return construct(ctx, ws)
	}
}

// Workspace returns the owning workspace
func (s *Service) Workspace() id.WorkspaceID { return s.workspace }

// Style returns the layout applied by Apply
func (s *Service) Style() Style { return s.style }

func cleanPath(p string) (string, error) {
	p = path.Clean("/" + strings.TrimSpace(p))
	if path.Ext(p) != Extension {
		return "", fmt.Errorf("%w: %s", ErrNotProperties, p)
	}
	return p, nil
}

// Put stores the text of a document and returns its modification stamp
func (s *Service) Put(p, text string) (uint64, error) {
	p, err := cleanPath(p)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return 0, ErrDisposed
	}
	return s.storeLocked(p, text), nil
}

func (s *Service) storeLocked(p, text string) uint64 {
	s.stamp++
	s.docs[p] = &document{text: text, stamp: s.stamp}
	return s.stamp
}

// Text returns the text and modification stamp of a document
func (s *Service) Text(p string) (string, uint64, bool) {
	p, err := cleanPath(p)
	if err != nil {
		return "", 0, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[p]
	if !ok {
		return "", 0, false
	}
	return doc.text, doc.stamp, true
}

// Has reports whether the workspace holds the document
func (s *Service) Has(p string) bool {
	_, _, ok := s.Text(p)
	return ok
}

// Remove drops a document
func (s *Service) Remove(p string) bool {
	p, err := cleanPath(p)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.docs[p]
	delete(s.docs, p)
	return ok
}

// Paths returns the stored documents in sorted order
func (s *Service) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.docs))
	for p := range s.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// BundleName returns the resource bundle base of p: its directory and
// file name without extension or locale, e.g. /i18n/messages for
// /i18n/messages_fr.properties or /i18n/messages_en_GB.properties
func BundleName(p string) string {
	base := strings.TrimSuffix(p, path.Ext(p))
	dir, file := path.Split(base)
	for i := 1; i < len(file); i++ {
		if file[i] == '_' && isLocale(file[i+1:]) {
			return dir + file[:i]
		}
	}
	return dir + file
}

// isLocale reports whether s is a language code, optionally followed by a
// region and a variant, e.g. fr, en_GB or es_ES_Traditional
func isLocale(s string) bool {
	parts := strings.SplitN(s, "_", 3)
	if len(parts[0]) != 2 || strings.ToLower(parts[0]) != parts[0] {
		return false
	}
	if _, err := language.ParseBase(parts[0]); err != nil {
		return false
	}
	if len(parts) == 1 {
		return true
	}
	if len(parts[1]) != 2 || strings.ToUpper(parts[1]) != parts[1] {
		return false
	}
	_, err := language.ParseRegion(parts[1])
	return err == nil
}

// bundleLocked returns the documents sharing the bundle of p, sorted
func (s *Service) bundleLocked(p string) []string {
	name := BundleName(p)
	var paths []string
	for other := range s.docs {
		if BundleName(other) == name {
			paths = append(paths, other)
		}
	}
	sort.Strings(paths)
	return paths
}

// Bundle returns the documents of the resource bundle p belongs to
func (s *Service) Bundle(p string) []string {
	p, err := cleanPath(p)
	if err != nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundleLocked(p)
}

func sorted(text string) (bool, error) {
	doc, err := Parse(text)
	if err != nil {
		return false, err
	}
	return doc.IsSorted(), nil
}

// Inspect checks the document at p. It returns nil when the document and the
// rest of its bundle are sorted. An unsorted sibling reports the whole bundle;
// otherwise an unsorted document reports itself. Malformed siblings are
// ignored.
func (s *Service) Inspect(p string) (*Problem, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.disposed {
		return nil, ErrDisposed
	}
	doc, ok := s.docs[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, p)
	}
	own, err := sorted(doc.text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}

	bundle := s.bundleLocked(p)
	for _, other := range bundle {
		if other == p {
			continue
		}
		if ok, err := sorted(s.docs[other].text); err == nil && !ok {
			return &Problem{
				Path:    p,
				Bundle:  BundleName(p),
				Message: fmt.Sprintf("Property keys of resource bundle '%s' aren't sorted", path.Base(BundleName(p))),
				Fix:     bundle,
			}, nil
		}
	}

	if !own {
		return &Problem{
			Path:    p,
			Bundle:  BundleName(p),
			Message: "Properties file is unsorted",
			Fix:     []string{p},
			force:   true,
		}, nil
	}
	return nil, nil
}

// Apply fixes the documents named by problem and returns those whose text
// changed. Sorted documents are skipped unless the problem concerns a single
// document. Every document is attempted; failures are returned together.
func (s *Service) Apply(problem *Problem) ([]string, error) {
	if problem == nil {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, ErrDisposed
	}

	var (
		fixed []string
		errs  error
	)
	for _, p := range problem.Fix {
		doc, ok := s.docs[p]
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrUnknownDocument, p))
			continue
		}
		if !problem.force {
			if ok, err := sorted(doc.text); err == nil && ok {
				continue
			}
		}

		text, err := Fix(doc.text, s.style)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		if text != doc.text {
			s.storeLocked(p, text)
			fixed = append(fixed, p)
		}
	}
	return fixed, errs
}

// Disposed reports whether Close has been called
func (s *Service) Disposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}

// Close releases the documents. It is idempotent.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disposed = true
	s.docs = make(map[string]*document)
	return nil
}
