package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/dm/search-insights/internal/model"
)

// MockNodeClient implements client.NodeClient for testing. Without GetFn it
// answers like a healthy node hosting a single core named "core1".
type MockNodeClient struct {
	GetFn func(ctx context.Context, url string) ([]byte, error)

	mu    sync.Mutex
	calls []string
}

func (m *MockNodeClient) Get(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	m.mu.Unlock()

	if m.GetFn != nil {
		return m.GetFn(ctx, url)
	}
	return defaultResponse(url), nil
}

// Calls returns the URLs requested so far.
func (m *MockNodeClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallsMatching counts requested URLs containing substr.
func (m *MockNodeClient) CallsMatching(substr string) int {
	n := 0
	for _, u := range m.Calls() {
		if strings.Contains(u, substr) {
			n++
		}
	}
	return n
}

func defaultResponse(url string) []byte {
	switch {
	case strings.Contains(url, "/admin/cores?action=STATUS"):
		return []byte(`{"status":{"core1":{"name":"core1"}}}`)
	case strings.Contains(url, "action=CLUSTERSTATUS"):
		return []byte(`{"cluster":{"collections":{"films":{}}}}`)
	default:
		return []byte(`{}`)
	}
}

// memRecorder keeps items in memory.
type memRecorder struct {
	*model.Collection
}

func newMemRecorder() *memRecorder {
	return &memRecorder{Collection: model.NewCollection()}
}

func (r *memRecorder) Record(_ context.Context, item model.Item) error {
	return r.Add(item)
}

func (r *memRecorder) has(key string) bool {
	return len(r.Filter(func(it model.Item) bool { return it.Key() == key })) == 1
}

func (r *memRecorder) byCategory(cat model.Category) []model.Item {
	return r.Filter(func(it model.Item) bool { return it.Category == cat })
}
