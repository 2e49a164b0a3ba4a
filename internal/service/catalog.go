package service

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog maps service tags to their factories. It is filled once during
// process initialization and read by warm-up observers and callers that
// only know a tag.
type Catalog struct {
	mu        sync.RWMutex
	factories map[Tag]Factory
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[Tag]Factory)}
}

// Register adds a factory under tag
func (c *Catalog) Register(tag Tag, factory Factory) error {
	if tag == "" {
		return ErrInvalidTag
	}
	if factory == nil {
		return fmt.Errorf("%w: %s", ErrNilFactory, tag)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[tag]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTag, tag)
	}
	c.factories[tag] = factory
	return nil
}

// Factory returns the factory registered under tag
func (c *Catalog) Factory(tag Tag) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.factories[tag]
	return f, ok
}

// Tags returns the registered tags in sorted order
func (c *Catalog) Tags() []Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tags := make([]Tag, 0, len(c.factories))
	for tag := range c.factories {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
