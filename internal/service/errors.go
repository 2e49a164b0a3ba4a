package service

import (
	"errors"
	"fmt"

	"github.com/cazayus/wshub/internal/shared/id"
)

var (
	// ErrUnknownIdentity is returned for workspaces that are closed, evicted
	// or not open according to the registry's Liveness.
	ErrUnknownIdentity = id.ErrUnknownWorkspace

	ErrInvalidTag     = errors.New("invalid service tag")
	ErrNilFactory     = errors.New("nil service factory")
	ErrDuplicateTag   = errors.New("service tag already registered")
	ErrUnknownTag     = errors.New("service tag not in catalog")
	ErrFactoryPanic   = errors.New("service factory panicked")
	ErrTypeMismatch   = errors.New("service instance has unexpected type")
	ErrNilConstructed = errors.New("service factory returned nil")
)

// ConstructionError reports a factory failure. Nothing is cached for Key,
// so a later GetOrCreate retries construction.
type ConstructionError struct {
	Key Key
	Err error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("failed to construct service %s: %v", e.Key, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}
