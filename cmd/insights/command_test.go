package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/dm/search-insights/internal/config"
	"github.com/dm/search-insights/internal/errors"
	"github.com/dm/search-insights/internal/testutil"
)

func newTestApp(env map[string]string) (*app, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &app{
		stdout: &stdout,
		stderr: &stderr,
		lookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
		version: "test",
	}, &stdout, &stderr
}

// captureConfig runs the command's flag parsing and returns the resolved
// config without collecting anything.
func captureConfig(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	a, _, _ := newTestApp(nil)
	cmd := a.command()

	var got config.Config
	cmd.Action = func(_ context.Context, c *cli.Command) error {
		var err error
		got, err = resolveConfig(c)
		return err
	}
	err := cmd.Run(context.Background(), append([]string{"insights"}, args...))
	return got, err
}

func TestResolveConfig_Flags(t *testing.T) {
	cfg, err := captureConfig(t,
		"-c", "zk1:2181,zk2:2181/solr",
		"-d", "http://a:8983, http://b:8983",
		"-z", "-s",
		"-n", "prod",
		"-m", "ticket=OPS-1", "-m", "env=prod",
		"-o", "/tmp/snap",
		"-e",
		"--disable-threads",
		"--concurrency", "8",
		"--request-timeout", "30s",
		"--max-rps", "12.5",
	)
	require.NoError(t, err)

	assert.Equal(t, "zk1:2181,zk2:2181/solr", cfg.ZKHost)
	assert.Equal(t, []string{"http://a:8983", "http://b:8983"}, cfg.DirectURLs)
	assert.True(t, cfg.CollectZK)
	assert.True(t, cfg.CollectSolr)
	assert.Equal(t, "prod", cfg.ClusterName)
	assert.Equal(t, []string{"ticket=OPS-1", "env=prod"}, cfg.Metadata)
	assert.Equal(t, "/tmp/snap", cfg.OutputDir)
	assert.True(t, cfg.DisableExpensive)
	assert.True(t, cfg.Disable.Threads)
	assert.False(t, cfg.Disable.Plugins)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, config.DefaultCoreConcurrency, cfg.CoreConcurrency)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 12.5, cfg.MaxRPS)
}

func TestResolveConfig_Defaults(t *testing.T) {
	cfg, err := captureConfig(t)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestResolveConfig_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
zkhost: zk-file:2181
cluster-name: from-file
collect-zk-metrics: true
concurrency: 2
disable:
  luke: true
`), 0o644))

	cfg, err := captureConfig(t, "--config", path, "-n", "from-flag", "--concurrency", "6")
	require.NoError(t, err)

	assert.Equal(t, "zk-file:2181", cfg.ZKHost)
	assert.Equal(t, "from-flag", cfg.ClusterName)
	assert.True(t, cfg.CollectZK)
	assert.Equal(t, 6, cfg.Concurrency)
	assert.True(t, cfg.Disable.Luke)
}

func TestResolveConfig_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("zkhosts: typo:2181\n"), 0o644))

	_, err := captureConfig(t, "--config", path)
	assert.True(t, errors.IsKind(err, errors.KindConfiguration))
}

func TestRun_EndToEnd(t *testing.T) {
	node := testutil.NewSolr(t, "films_shard1_replica_n1").WithCollections("films")
	out := filepath.Join(t.TempDir(), "snap")

	a, stdout, stderr := newTestApp(map[string]string{
		config.EnvAuthUser:     "solr",
		config.EnvAuthPassword: "SolrRocks",
	})
	err := a.command().Run(context.Background(), []string{
		"insights", "-s", "-n", "e2e", "-o", out, "-d", node.BaseURL(), "--log-format", "json",
	})
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "e2e")
	assert.Contains(t, stdout.String(), "OK")
	assert.Contains(t, stderr.String(), `"auth":"basic(solr)"`)
	assert.NotContains(t, stderr.String(), "SolrRocks")

	_, err = os.Stat(filepath.Join(out, "solr", "cores", "films_shard1_replica_n1_luke"))
	assert.NoError(t, err)
}

func TestRun_AuthDisabledNotice(t *testing.T) {
	node := testutil.NewSolr(t)
	a, _, stderr := newTestApp(map[string]string{config.EnvAuthUser: "solr"})

	err := a.command().Run(context.Background(), []string{
		"insights", "-s", "-n", "e2e", "-o", t.TempDir(), "-d", node.BaseURL(), "--log-format", "json",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(stderr.Bytes(), []byte("unauthenticated")))
}

func TestRun_ConfigurationError(t *testing.T) {
	a, stdout, _ := newTestApp(nil)
	err := a.command().Run(context.Background(), []string{"insights", "-z", "-n", "c", "-o", t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfiguration))
	assert.Empty(t, stdout.String())
}

func TestRun_UnknownLogFormat(t *testing.T) {
	a, _, _ := newTestApp(nil)
	err := a.command().Run(context.Background(), []string{"insights", "--log-format", "xml"})
	assert.ErrorContains(t, err, "unknown log format")
}

func TestRun_UnknownLogLevel(t *testing.T) {
	a, stdout, _ := newTestApp(nil)
	err := a.command().Run(context.Background(), []string{"insights", "--log-level", "loud"})
	assert.ErrorContains(t, err, "unknown log level")
	assert.Empty(t, stdout.String())
}
