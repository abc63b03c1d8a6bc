// Package testutil provides fakes shared by the package tests: an in-memory
// coordination tree, fake search nodes, and loggers.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dm/search-insights/internal/zookeeper"
)

// Tree is an in-memory coordination namespace implementing
// zookeeper.Session. Children are listed in insertion order.
type Tree struct {
	mu           sync.Mutex
	values       map[string][]byte
	children     map[string][]string
	failGet      map[string]error
	failChildren map[string]error
	reads        int
	closed       bool
}

// NewTree returns a tree holding only the root, with an empty value.
func NewTree() *Tree {
	return &Tree{
		values:       map[string][]byte{"/": {}},
		children:     map[string][]string{},
		failGet:      map[string]error{},
		failChildren: map[string]error{},
	}
}

// Set stores value at path, creating missing parents with no value.
func (t *Tree) Set(path string, value []byte) *Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensure(path)
	t.values[path] = value
	return t
}

// SetString is Set with a string value.
func (t *Tree) SetString(path, value string) *Tree {
	return t.Set(path, []byte(value))
}

func (t *Tree) ensure(path string) {
	if _, ok := t.values[path]; ok || path == "/" {
		return
	}
	i := strings.LastIndex(path, "/")
	parent := path[:i]
	if parent == "" {
		parent = "/"
	}
	t.ensure(parent)
	t.values[path] = nil
	t.children[parent] = append(t.children[parent], path[i+1:])
}

// FailGet makes reads of path's value return err.
func (t *Tree) FailGet(path string, err error) *Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failGet[path] = err
	return t
}

// FailChildren makes child listings of path return err.
func (t *Tree) FailChildren(path string, err error) *Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failChildren[path] = err
	return t
}

// Get implements zookeeper.Reader.
func (t *Tree) Get(_ context.Context, path string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reads++
	if err := t.failGet[path]; err != nil {
		return nil, err
	}
	v, ok := t.values[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, zookeeper.ErrNoNode)
	}
	if v == nil {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Children implements zookeeper.Reader.
func (t *Tree) Children(_ context.Context, path string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reads++
	if err := t.failChildren[path]; err != nil {
		return nil, err
	}
	if _, ok := t.values[path]; !ok {
		return nil, fmt.Errorf("children %s: %w", path, zookeeper.ErrNoNode)
	}
	return append([]string(nil), t.children[path]...), nil
}

// Close implements zookeeper.Session.
func (t *Tree) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// Closed reports whether Close was called.
func (t *Tree) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Reads returns the number of Get and Children calls served.
func (t *Tree) Reads() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reads
}

// Dialer returns a DialFunc handing out this tree, or err when err is set.
func (t *Tree) Dialer(err error) zookeeper.DialFunc {
	return func(context.Context, string) (zookeeper.Session, error) {
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}
