// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package jsonval

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a path names a key that does not exist.
	ErrNotFound = errors.New("path not found")

	// ErrNotObject is returned when a path traverses a value that is not an
	// object. Arrays are not addressable with dotted paths.
	ErrNotObject = errors.New("path traverses a non-object value")

	// ErrInvalidPath is returned for empty paths or paths with empty segments.
	ErrInvalidPath = errors.New("invalid path")
)

// SplitPath splits a dotted path into its segments.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return segments, nil
}

// LastSegment returns the final segment of a dotted path.
func LastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Lookup resolves a dotted path against v.
func (v Value) Lookup(path string) (Value, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return Value{}, err
	}
	cur := v
	for i, seg := range segments {
		if cur.kind != Object {
			return Value{}, fmt.Errorf("%w: %q at %q", ErrNotObject, path, strings.Join(segments[:i], "."))
		}
		next, ok := cur.obj[seg]
		if !ok {
			return Value{}, fmt.Errorf("%w: %q", ErrNotFound, path)
		}
		cur = next
	}
	return cur, nil
}

// Get is Lookup without the reason: ok is false when the path does not resolve.
func (v Value) Get(path string) (Value, bool) {
	got, err := v.Lookup(path)
	return got, err == nil
}

// Set writes x at path, creating intermediate objects for missing keys. It
// fails when v is not an object or an existing intermediate is not an object.
func (v Value) Set(path string, x Value) error {
	segments, err := SplitPath(path)
	if err != nil {
		return err
	}
	if v.kind != Object {
		return fmt.Errorf("%w: root is %s", ErrNotObject, v.kind)
	}
	cur := v.obj
	for i, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg]
		if !ok {
			next = NewObject()
			cur[seg] = next
		}
		if next.kind != Object {
			return fmt.Errorf("%w: %q at %q is %s", ErrNotObject, path, strings.Join(segments[:i+1], "."), next.kind)
		}
		cur = next.obj
	}
	cur[segments[len(segments)-1]] = x
	return nil
}

// Delete removes the value at path and reports whether anything was removed.
// Missing keys and non-object intermediates are not errors.
func (v Value) Delete(path string) bool {
	segments, err := SplitPath(path)
	if err != nil || v.kind != Object {
		return false
	}
	cur := v.obj
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg]
		if !ok || next.kind != Object {
			return false
		}
		cur = next.obj
	}
	last := segments[len(segments)-1]
	if _, ok := cur[last]; !ok {
		return false
	}
	delete(cur, last)
	return true
}
