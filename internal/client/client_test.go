package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dm/search-insights/internal/config"
	"github.com/dm/search-insights/internal/errors"
	"github.com/dm/search-insights/internal/model"
)

// newTestClient creates a DefaultClient with the given auth.
func newTestClient(t *testing.T, auth config.Auth) *DefaultClient {
	t.Helper()
	c, err := NewDefaultClient(ClientConfig{Auth: auth, RequestTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewDefaultClient: %v", err)
	}
	return c
}

func TestGet_AppendsCacheBuster(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, config.Auth{})
	body, err := c.Get(context.Background(), srv.URL+"/solr/admin/collections?action=CLUSTERSTATUS")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, "action=CLUSTERSTATUS&_=searchscale", gotQuery)

	_, err = c.Get(context.Background(), srv.URL+"/solr/admin/metrics")
	require.NoError(t, err)
	assert.Equal(t, "_=searchscale", gotQuery)
}

func TestGet_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "solr" || pass != "SolrRocks" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	_, err := newTestClient(t, config.Auth{Username: "solr", Password: "SolrRocks"}).Get(context.Background(), srv.URL)
	assert.NoError(t, err)

	_, err = newTestClient(t, config.Auth{}).Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, 401, errors.ContextOf(err)["status"])
}

func TestGet_NoAuthHeaderWhenDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("Authorization header sent without credentials")
		}
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	_, err := newTestClient(t, config.Auth{Username: "only-user"}).Get(context.Background(), srv.URL)
	assert.NoError(t, err)
}

func TestGet_NonSuccessStatus(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusNotFound, http.StatusMovedPermanently} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "/elsewhere")
			w.WriteHeader(status)
			_, _ = w.Write([]byte("server error body"))
		}))

		c := newTestClient(t, config.Auth{})
		c.http.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
		body, err := c.Get(context.Background(), srv.URL)
		srv.Close()

		require.Error(t, err, "status %d", status)
		assert.Nil(t, body)
		assert.True(t, errors.IsKind(err, errors.KindConnectivity))
		assert.Equal(t, status, errors.ContextOf(err)["status"])
	}
}

func TestGet_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, config.Auth{}).Get(context.Background(), url)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConnectivity))
	assert.Contains(t, errors.ContextOf(err)["url"], "_=searchscale")
}

func TestGet_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewDefaultClient(ClientConfig{RequestTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	_, err = c.Get(context.Background(), srv.URL)
	assert.True(t, errors.IsKind(err, errors.KindConnectivity))
}

func TestGet_RateLimited(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c, err := NewDefaultClient(ClientConfig{MaxRPS: 20})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 25; i++ {
		_, err := c.Get(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(25), hits.Load())
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond, "5 requests beyond the burst need 250ms at 20 rps")
}

func TestGet_RateLimiterHonorsContext(t *testing.T) {
	c, err := NewDefaultClient(ClientConfig{MaxRPS: 0.001})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _ = c.Get(ctx, "http://127.0.0.1:1") // consumes the single token
	_, err = c.Get(ctx, "http://127.0.0.1:1")
	assert.True(t, errors.IsKind(err, errors.KindConnectivity))
}

func TestNewDefaultClient_RejectsNegative(t *testing.T) {
	_, err := NewDefaultClient(ClientConfig{RequestTimeout: -1})
	assert.Error(t, err)
	_, err = NewDefaultClient(ClientConfig{MaxRPS: -1})
	assert.Error(t, err)
}

func TestWithCacheBuster(t *testing.T) {
	assert.Equal(t, "http://a/solr/admin/metrics?_=searchscale", WithCacheBuster("http://a/solr/admin/metrics"))
	assert.Equal(t, "http://a/solr/admin/cores?action=STATUS&_=searchscale", WithCacheBuster("http://a/solr/admin/cores?action=STATUS"))
}

func TestNodeEndpoints(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	eps := NodeEndpoints(now)

	var cats []model.Category
	for _, ep := range eps {
		cats = append(cats, ep.Category)
	}
	assert.Equal(t, []model.Category{
		model.CategoryMetrics, model.CategoryThreads, model.CategoryLogs,
		model.CategoryClusterState, model.CategoryOverseer, model.CategoryCores,
	}, cats)

	logs := eps[2]
	wantSince := now.Add(-24 * time.Hour).UnixMilli()
	assert.True(t, strings.HasSuffix(logs.Path, "since="+strconv.FormatInt(wantSince, 10)), logs.Path)

	assert.Equal(t, "http://solr1:8983/solr/admin/metrics", NodeURL("http://solr1:8983/solr/", eps[0]))
}

func TestCoreURL(t *testing.T) {
	assert.Equal(t, "http://solr1:8983/solr/films_shard1_replica_n1/admin/luke",
		CoreURL("http://solr1:8983/solr", "films_shard1_replica_n1", model.CategoryLuke))
}
