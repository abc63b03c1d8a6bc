// Package config holds the resolved configuration of one collection run.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/dm/search-insights/internal/errors"
	"github.com/dm/search-insights/internal/model"
)

// Defaults for the worker pools and timeouts.
const (
	DefaultConcurrency      = 4
	DefaultCoreConcurrency  = 4
	DefaultRequestTimeout   = 2 * time.Minute
	DefaultZKSessionTimeout = 15 * time.Second
)

// Disable switches off individual endpoints for every node.
type Disable struct {
	Metrics  bool `yaml:"metrics"`
	Threads  bool `yaml:"threads"`
	Logs     bool `yaml:"logs"`
	Overseer bool `yaml:"overseer"`
	Segments bool `yaml:"segments"`
	Luke     bool `yaml:"luke"`
	Plugins  bool `yaml:"plugins"`
}

// Config is the resolved run configuration. It is built once by the command
// and passed by value afterwards.
type Config struct {
	ZKHost      string   `yaml:"zkhost"`
	DirectURLs  []string `yaml:"direct-solr-urls"`
	CollectZK   bool     `yaml:"collect-zk-metrics"`
	CollectSolr bool     `yaml:"collect-solr-metrics"`
	ClusterName string   `yaml:"cluster-name"`
	// Metadata holds extra key=value lines for collector.properties.
	Metadata  []string `yaml:"metadata"`
	OutputDir string   `yaml:"output-directory"`

	DisableExpensive bool    `yaml:"disable-expensive-operations"`
	Disable          Disable `yaml:"disable"`

	Concurrency      int           `yaml:"concurrency"`
	CoreConcurrency  int           `yaml:"core-concurrency"`
	RequestTimeout   time.Duration `yaml:"request-timeout"`
	MaxRPS           float64       `yaml:"max-rps"`
	Insecure         bool          `yaml:"insecure"`
	ZKSessionTimeout time.Duration `yaml:"zk-session-timeout"`

	// Auth is never read from the config file; see AuthFromEnv.
	Auth Auth `yaml:"-"`
}

// Default returns a Config with every optional setting at its default.
func Default() Config {
	return Config{
		Concurrency:      DefaultConcurrency,
		CoreConcurrency:  DefaultCoreConcurrency,
		RequestTimeout:   DefaultRequestTimeout,
		ZKSessionTimeout: DefaultZKSessionTimeout,
	}
}

// LoadFile reads a YAML config file on top of Default. Unknown keys are
// rejected so typos do not silently re-enable an endpoint.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrap(errors.KindConfiguration, "open config file", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.WrapWithContext(errors.KindConfiguration, "decode config file", err,
			map[string]any{"path": path})
	}
	return cfg, nil
}

// Validate checks that the configuration describes a runnable collection.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ClusterName) == "" {
		return errors.New(errors.KindConfiguration, "cluster name (-n / --cluster-name) is required")
	}
	if strings.IndexFunc(c.ClusterName, unicode.IsSpace) >= 0 {
		return errors.New(errors.KindConfiguration, "cluster name must not contain spaces")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New(errors.KindConfiguration, "output directory (-o / --output-directory) is required")
	}
	if !c.CollectZK && !c.CollectSolr {
		return errors.New(errors.KindConfiguration, "nothing to collect: pass --collect-zk-metrics and/or --collect-solr-metrics")
	}
	if c.CollectZK && strings.TrimSpace(c.ZKHost) == "" {
		return errors.New(errors.KindConfiguration, "--collect-zk-metrics was specified but ZK host (-c / --zkhost) not specified")
	}
	if c.CollectSolr && len(c.DirectURLs) == 0 && strings.TrimSpace(c.ZKHost) == "" {
		return errors.New(errors.KindConfiguration, "--collect-solr-metrics needs either --direct-solr-urls or --zkhost")
	}
	if c.Concurrency < 1 || c.CoreConcurrency < 1 {
		return errors.New(errors.KindConfiguration, "concurrency limits must be at least 1")
	}
	if c.MaxRPS < 0 {
		return errors.New(errors.KindConfiguration, "--max-rps must not be negative")
	}
	if _, err := ParseMetadata(c.Metadata); err != nil {
		return err
	}
	return nil
}

// NodeEndpointEnabled reports whether a node-level endpoint is collected.
// Cluster status and the core inventory cannot be disabled.
func (c Config) NodeEndpointEnabled(cat model.Category) bool {
	switch cat {
	case model.CategoryMetrics:
		return !c.Disable.Metrics
	case model.CategoryThreads:
		return !c.Disable.Threads
	case model.CategoryLogs:
		return !c.Disable.Logs && !c.DisableExpensive
	case model.CategoryOverseer:
		return !c.Disable.Overseer
	case model.CategoryClusterState, model.CategoryCores:
		return true
	default:
		return false
	}
}

// CoreEndpoints returns the enabled per-core endpoints in collection order.
func (c Config) CoreEndpoints() []model.Category {
	var out []model.Category
	if !c.Disable.Segments {
		out = append(out, model.CategorySegments)
	}
	if !c.Disable.Luke && !c.DisableExpensive {
		out = append(out, model.CategoryLuke)
	}
	if !c.Disable.Plugins {
		out = append(out, model.CategoryPlugins)
	}
	return out
}

// KeyValue is one metadata entry.
type KeyValue struct {
	Key   string
	Value string
}

var reservedKeys = map[string]bool{
	"collector-version": true,
	"timestamp":         true,
	"cluster-name":      true,
}

// ParseMetadata parses key=value lines, keeping their order. Blank lines are
// skipped. Keys must be unique and must not shadow the built-in properties.
func ParseMetadata(lines []string) ([]KeyValue, error) {
	var out []KeyValue
	seen := make(map[string]bool)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.New(errors.KindConfiguration, fmt.Sprintf("metadata %q: want key=value", line))
		}
		if reservedKeys[k] {
			return nil, errors.New(errors.KindConfiguration, fmt.Sprintf("metadata key %q is reserved", k))
		}
		if seen[k] {
			return nil, errors.New(errors.KindConfiguration, fmt.Sprintf("metadata key %q given twice", k))
		}
		seen[k] = true
		out = append(out, KeyValue{Key: k, Value: strings.TrimSpace(v)})
	}
	return out, nil
}

// SplitList splits a comma-separated flag value, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
