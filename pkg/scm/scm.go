// Package scm fetches repository content into a local working copy.
//
// The "none" kind reads a local directory in place. Versioned kinds are
// registered by name; git is built in and backed by go-git.
package scm

import (
	"context"
	"sort"
	"sync"

	"github.com/arthur-debert/solodeploy/pkg/errors"
)

// KindNone marks content read directly from a local path
const KindNone = "none"

// SourceControl fetches one repository
type SourceControl interface {
	// Checkout performs a fresh checkout of revision into dest
	Checkout(ctx context.Context, revision, dest string) error
	// Sync updates an existing working copy at dest to revision
	Sync(ctx context.Context, revision, dest string) error
	// Head names the revision used when none is configured
	Head() string
}

// Factory builds a SourceControl for a repository location
type Factory func(location string) SourceControl

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"git": func(location string) SourceControl { return NewGit(location) },
	}
)

// Register adds or replaces a versioned kind
func Register(kind string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = factory
}

// Known reports whether kind can be fetched
func Known(kind string) bool {
	if kind == KindNone {
		return true
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[kind]
	return ok
}

// Kinds lists the registered versioned kinds
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// New returns the SourceControl for kind at location
func New(kind, location string) (SourceControl, error) {
	if kind == KindNone {
		return None{Location: location}, nil
	}
	registryMu.RLock()
	factory, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown source kind %q", kind).
			WithDetail("kind", kind)
	}
	return factory(location), nil
}

// None is a local directory used in place
type None struct {
	Location string
}

// Checkout is a no-op; the content already lives at Location
func (None) Checkout(ctx context.Context, revision, dest string) error { return nil }

// Sync is a no-op; the content already lives at Location
func (None) Sync(ctx context.Context, revision, dest string) error { return nil }

// Head returns an empty revision
func (None) Head() string { return "" }
