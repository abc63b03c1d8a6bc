// Package engine orchestrates one collection run: the coordination tree dump
// and the fan-out over search nodes and their cores.
package engine

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dm/search-insights/internal/client"
	"github.com/dm/search-insights/internal/config"
	"github.com/dm/search-insights/internal/errors"
	"github.com/dm/search-insights/internal/metrics"
	"github.com/dm/search-insights/internal/model"
	"github.com/dm/search-insights/internal/sink"
	"github.com/dm/search-insights/internal/topology"
	"github.com/dm/search-insights/internal/zookeeper"
)

// DumpRoot is where the coordination tree dump starts.
const DumpRoot = "/"

// Runner runs a whole collection. Only a configuration error or a failure to
// resolve the topology fails the run; everything else ends up in the output.
type Runner struct {
	Config  config.Config
	Version string
	Client  client.NodeClient
	Dial    zookeeper.DialFunc
	Logger  zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Run collects into Config.OutputDir and returns the run summary. The summary
// is returned even when err is non-nil if the output directory was created.
func (r *Runner) Run(ctx context.Context) (model.Summary, error) {
	start := r.now()
	cfg := r.Config

	if err := cfg.Validate(); err != nil {
		return model.Summary{}, err
	}
	metadata, err := config.ParseMetadata(cfg.Metadata)
	if err != nil {
		return model.Summary{}, err
	}

	out, err := sink.NewWriter(cfg.OutputDir, r.Logger)
	if err != nil {
		return model.Summary{}, err
	}
	if err := out.WriteProperties(r.Version, start, cfg.ClusterName, metadata); err != nil {
		return model.Summary{}, err
	}

	run := metrics.NewRun()
	collector := &Collector{
		Client:   r.Client,
		Recorder: out,
		Config:   cfg,
		Logger:   r.Logger.With().Str("component", "collector").Logger(),
		Observer: run,
		Now:      r.Now,
	}

	// A topology failure ends the run with an error but never cancels the
	// tree dump.
	var (
		g       errgroup.Group
		zkPaths int
	)
	if cfg.CollectZK {
		g.Go(func() error {
			zkPaths = r.dumpTree(ctx, out, run)
			return nil
		})
	}
	if cfg.CollectSolr {
		g.Go(func() error {
			resolver := &topology.Resolver{
				Dial:   r.Dial,
				Logger: r.Logger.With().Str("component", "topology").Logger(),
			}
			topo, err := resolver.Resolve(ctx, cfg.DirectURLs, cfg.ZKHost)
			if err != nil {
				return err
			}
			run.SetNodes(len(topo.Nodes))
			r.Logger.Info().Int("nodes", len(topo.Nodes)).Str("scheme", topo.URLScheme).Msg("topology resolved")
			collector.CollectAll(ctx, topo.Nodes)
			return nil
		})
	}
	runErr := g.Wait()

	summary := out.Ledger().Summarize()
	summary.ClusterName = cfg.ClusterName
	summary.OutputDir = cfg.OutputDir
	summary.Collections = len(collector.Collections())
	summary.ZKPaths = zkPaths
	summary.Duration = r.now().Sub(start)

	run.SetZKPaths(zkPaths)
	run.SetRunDuration(summary.Duration)
	if err := run.WriteFile(filepath.Join(cfg.OutputDir, metrics.FileName)); err != nil {
		r.Logger.Warn().Err(err).Msg("failed to write run metrics")
	}

	if runErr != nil {
		return summary, runErr
	}
	r.Logger.Info().
		Int("artifacts", summary.Items).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.Duration).
		Msg("collection finished")
	return summary, nil
}

// dumpTree records the coordination tree as a single artifact. A failure
// anywhere in the traversal is recorded instead of a partial tree.
func (r *Runner) dumpTree(ctx context.Context, rec Recorder, run *metrics.Run) int {
	logger := r.Logger.With().Str("component", "zkdump").Logger()
	start := time.Now()

	item := model.Item{Category: model.CategoryZookeeper, URL: r.Config.ZKHost}
	paths := 0

	snap, err := r.dump(ctx)
	if err == nil {
		item.Payload, err = json.Marshal(snap)
		if err != nil {
			err = errors.Wrap(errors.KindInternal, "encode tree dump", err)
		}
	}
	if err != nil {
		logger.Error().Err(err).Msg("coordination tree dump failed")
		item.Payload = nil
		item.Err = err
	} else {
		paths = snap.Len()
		logger.Info().Int("paths", paths).Msg("coordination tree dumped")
	}
	item.Elapsed = time.Since(start)

	run.ObserveFetch(item.Category, item.Failed(), item.Elapsed)
	if err := rec.Record(ctx, item); err != nil {
		logger.Error().Err(err).Msg("failed to record tree dump")
	}
	return paths
}

func (r *Runner) dump(ctx context.Context) (*zookeeper.Snapshot, error) {
	sess, err := r.Dial(ctx, r.Config.ZKHost)
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	return zookeeper.Dump(ctx, sess, DumpRoot)
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
