// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package provider implements a generic factory registry for pluggable backends.
//
// The record store (state.Providers) and the credential store
// (secretstore.Providers) each own a typed Registry. Backend packages
// register themselves from init(), the way database/sql drivers do, so the
// server picks one by name from its configuration after a blank import.
package provider

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ErrUnknownProvider is returned by New for a name nobody registered.
var ErrUnknownProvider = errors.New("unknown provider")

// Factory builds a backend from string parameters such as "dsn" or
// "base_dir". Unused keys are ignored.
type Factory[T any] func(ctx context.Context, params map[string]string) (T, error)

// Registry maps backend names to factories for one subsystem.
type Registry[T any] struct {
	subsystem string
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry creates a Registry. subsystem names it in errors, e.g.
// "storage" or "secret_store".
func NewRegistry[T any](subsystem string) *Registry[T] {
	return &Registry[T]{
		subsystem: subsystem,
		factories: make(map[string]Factory[T]),
	}
}

// Register adds a named factory. Names are case-insensitive. Registering a
// name twice panics, which surfaces clashing init() functions at startup.
func (r *Registry[T]) Register(name string, f Factory[T]) {
	key := normalize(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[key]; exists {
		panic(fmt.Sprintf("provider: %s backend %q already registered", r.subsystem, key))
	}
	r.factories[key] = f
}

// New builds the backend registered under name.
func (r *Registry[T]) New(ctx context.Context, name string, params map[string]string) (T, error) {
	key := normalize(name)
	r.mu.RLock()
	f, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w for %s: %q (available: %v)", ErrUnknownProvider, r.subsystem, key, r.Available())
	}
	if params == nil {
		params = map[string]string{}
	}
	b, err := f(ctx, params)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s backend %q: %w", r.subsystem, key, err)
	}
	return b, nil
}

// Available returns the registered backend names, sorted.
func (r *Registry[T]) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
