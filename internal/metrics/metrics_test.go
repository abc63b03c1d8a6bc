package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dm/search-insights/internal/model"
)

func TestObserveFetch(t *testing.T) {
	r := NewRun()
	r.ObserveFetch(model.CategoryMetrics, false, 100*time.Millisecond)
	r.ObserveFetch(model.CategoryMetrics, false, 200*time.Millisecond)
	r.ObserveFetch(model.CategoryMetrics, true, time.Second)
	r.ObserveFetch(model.CategoryLuke, true, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.fetchTotal.WithLabelValues("metrics", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchTotal.WithLabelValues("metrics", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchTotal.WithLabelValues("luke", OutcomeError)))
	assert.Equal(t, 2, testutil.CollectAndCount(r.fetchDuration))
}

func TestGauges(t *testing.T) {
	r := NewRun()
	r.SetNodes(3)
	r.SetZKPaths(42)
	r.SetRunDuration(1500 * time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.nodes))
	assert.Equal(t, 42.0, testutil.ToFloat64(r.zkPaths))
	assert.Equal(t, 1.5, testutil.ToFloat64(r.runDuration))
}

func TestRunsDoNotShareSeries(t *testing.T) {
	a, b := NewRun(), NewRun()
	a.ObserveFetch(model.CategoryThreads, false, time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(a.fetchTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(b.fetchTotal))
}

func TestWriteFile(t *testing.T) {
	r := NewRun()
	r.SetNodes(2)
	r.ObserveFetch(model.CategoryCores, false, 10*time.Millisecond)

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, r.WriteFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "insights_nodes 2")
	assert.Contains(t, text, `insights_fetch_total{category="cores",outcome="ok"} 1`)
	assert.True(t, strings.Contains(text, "# HELP insights_run_duration_seconds"))

	lint, err := testutil.GatherAndLint(r.Registry())
	require.NoError(t, err)
	assert.Empty(t, lint)
}
