package model

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dm/search-insights/internal/errors"
)

// NodeIdentity turns a node base URL into a single path element.
func NodeIdentity(node string) string {
	return strings.NewReplacer("/", "_", ":", "_").Replace(node)
}

// Collection is a concurrency-safe, append-only ledger of collected items.
// Adding a key twice is rejected, never overwritten.
type Collection struct {
	mu    sync.Mutex
	items []Item
	keys  map[string]int
}

// NewCollection returns an empty Collection.
func NewCollection() *Collection {
	return &Collection{keys: make(map[string]int)}
}

// Add appends item. It returns a DUPLICATE error if an item with the same key
// was already added.
func (c *Collection) Add(item Item) error {
	key := item.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.keys[key]; ok {
		return errors.WrapWithContext(errors.KindDuplicate, "artifact already collected", nil,
			map[string]any{"key": key, "node": item.Node})
	}
	c.keys[key] = len(c.items)
	c.items = append(c.items, item)
	return nil
}

// Fail marks the item added under key as failed with err. The key stays
// taken. It returns false if key was never added.
func (c *Collection) Fail(key string, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.keys[key]
	if !ok {
		return false
	}
	c.items[i].Err = err
	c.items[i].Payload = nil
	c.items[i].Size = 0
	return true
}

// Len returns the number of items.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Items returns a copy of all items sorted by key.
func (c *Collection) Items() []Item {
	c.mu.Lock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Filter returns the items, sorted by key, for which keep returns true.
func (c *Collection) Filter(keep func(Item) bool) []Item {
	var out []Item
	for _, it := range c.Items() {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// Failures returns the failed items sorted by key.
func (c *Collection) Failures() []Item {
	return c.Filter(Item.Failed)
}

// Summarize folds the ledger into a Summary.
func (c *Collection) Summarize() Summary {
	s := Summary{ByCategory: make(map[Category]CategoryCount)}
	nodes := make(map[string]struct{})
	cores := make(map[string]struct{})

	for _, it := range c.Items() {
		cc := s.ByCategory[it.Category]
		if it.Failed() {
			cc.Failed++
			s.Failed++
			s.Failures = append(s.Failures, it)
		} else {
			cc.OK++
		}
		s.ByCategory[it.Category] = cc
		s.Items++
		s.Bytes += it.Size
		if it.Node != "" {
			nodes[it.Node] = struct{}{}
		}
		if it.IsCore() {
			cores[it.Core] = struct{}{}
		}
	}
	s.Nodes = len(nodes)
	s.Cores = len(cores)
	return s
}

// CategoryCount tallies outcomes for one category.
type CategoryCount struct {
	OK     int
	Failed int
}

// Summary describes a finished run for the operator.
type Summary struct {
	ClusterName string
	OutputDir   string
	Nodes       int
	Cores       int
	Collections int
	ZKPaths     int
	Items       int
	Failed      int
	Bytes       int64
	Duration    time.Duration
	ByCategory  map[Category]CategoryCount
	Failures    []Item
}
