package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Solr is a fake search node serving the admin API under /solr. Endpoints
// answer 200 with a small JSON body unless made to fail with Fail.
type Solr struct {
	Server *httptest.Server

	mu          sync.Mutex
	cores       []string
	collections []string
	inventory   []byte
	fail        map[string]int
	hits        map[string]int
}

// NewSolr starts a fake node hosting cores. The server is closed when the
// test ends.
func NewSolr(t *testing.T, cores ...string) *Solr {
	t.Helper()
	s := &Solr{
		cores: cores,
		fail:  map[string]int{},
		hits:  map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Server.Close)
	return s
}

// BaseURL is the node base URL, ending in /solr.
func (s *Solr) BaseURL() string {
	return s.Server.URL + "/solr"
}

// LiveNodeName is the name the node would register under /live_nodes.
func (s *Solr) LiveNodeName() string {
	return strings.TrimPrefix(s.Server.URL, "http://") + "_solr"
}

// WithCollections sets the collections reported by cluster status.
func (s *Solr) WithCollections(names ...string) *Solr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = names
	return s
}

// WithInventory replaces the core inventory body.
func (s *Solr) WithInventory(body string) *Solr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory = []byte(body)
	return s
}

// Fail makes requests whose path (below /solr) starts with prefix answer
// with status.
func (s *Solr) Fail(prefix string, status int) *Solr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[prefix] = status
	return s
}

// Hits returns how many requests reached paths starting with prefix.
func (s *Solr) Hits(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for p, c := range s.hits {
		if strings.HasPrefix(p, prefix) {
			n += c
		}
	}
	return n
}

func (s *Solr) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/solr")

	s.mu.Lock()
	s.hits[path]++
	status := 0
	for prefix, st := range s.fail {
		if strings.HasPrefix(path, prefix) {
			status = st
		}
	}
	cores := s.cores
	collections := s.collections
	inventory := s.inventory
	s.mu.Unlock()

	if r.URL.Query().Get("_") != "searchscale" {
		http.Error(w, "missing cache buster", http.StatusBadRequest)
		return
	}
	if status != 0 {
		http.Error(w, `{"error":{"msg":"injected failure"}}`, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case path == "/admin/cores" && r.URL.Query().Get("action") == "STATUS":
		if inventory != nil {
			_, _ = w.Write(inventory)
			return
		}
		status := make(map[string]any, len(cores))
		for _, c := range cores {
			status[c] = map[string]any{"name": c}
		}
		writeJSON(w, map[string]any{"responseHeader": map[string]int{"status": 0}, "status": status})
	case path == "/admin/collections" && r.URL.Query().Get("action") == "CLUSTERSTATUS":
		cols := make(map[string]any, len(collections))
		for _, c := range collections {
			cols[c] = map[string]any{"shards": map[string]any{}}
		}
		writeJSON(w, map[string]any{"cluster": map[string]any{"collections": cols, "live_nodes": []string{}}})
	default:
		writeJSON(w, map[string]any{"responseHeader": map[string]int{"status": 0}, "path": path})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}
