package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dm/search-insights/internal/client"
	"github.com/dm/search-insights/internal/config"
	"github.com/dm/search-insights/internal/errors"
	"github.com/dm/search-insights/internal/model"
)

// Recorder accepts collected items. Implementations must be safe for
// concurrent use and must reject a key they have already seen.
type Recorder interface {
	Record(ctx context.Context, item model.Item) error
}

// FetchObserver is notified of every recorded item.
type FetchObserver interface {
	ObserveFetch(cat model.Category, failed bool, elapsed time.Duration)
}

// Collector fetches the node and core catalogs of every node. It never fails
// outward: each failure is recorded as an item and collection moves on.
type Collector struct {
	Client   client.NodeClient
	Recorder Recorder
	Config   config.Config
	Logger   zerolog.Logger
	// Observer is optional.
	Observer FetchObserver
	// Now defaults to time.Now.
	Now func() time.Time

	mu          sync.Mutex
	collections map[string]struct{}
}

// CollectAll collects every node, at most Config.Concurrency at a time. It
// returns once every node is done or ctx is canceled.
func (c *Collector) CollectAll(ctx context.Context, nodes []string) {
	g := new(errgroup.Group)
	g.SetLimit(max(1, c.Config.Concurrency))

	for _, node := range nodes {
		node := node
		g.Go(func() error {
			c.CollectNode(ctx, node)
			return nil
		})
	}
	_ = g.Wait()
}

// Collections returns the distinct collection names reported by cluster
// status responses so far.
func (c *Collector) Collections() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.collections))
	for name := range c.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CollectNode fetches the enabled node catalog of one node in catalog order,
// then its cores when the core inventory was fetched.
func (c *Collector) CollectNode(ctx context.Context, node string) {
	logger := c.Logger.With().Str("node", node).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("node collection panicked")
			c.recordNodeError(ctx, node, errors.New(errors.KindInternal, fmt.Sprintf("panic: %v", r)))
		}
	}()

	start := c.now()
	for _, ep := range client.NodeEndpoints(start) {
		if !c.Config.NodeEndpointEnabled(ep.Category) {
			continue
		}
		item := c.fetch(ctx, ep.Category, node, "", client.NodeURL(node, ep))
		c.record(ctx, item)

		if item.Failed() {
			logger.Warn().Err(item.Err).Str("category", string(ep.Category)).Msg("endpoint fetch failed")
			if ep.Category == model.CategoryCores {
				logger.Warn().Msg("core inventory unavailable, skipping core collection")
			}
			continue
		}

		switch ep.Category {
		case model.CategoryClusterState:
			if err := c.noteCollections(item.Payload); err != nil {
				logger.Error().Err(err).Msg("cluster status not understood")
				c.recordNodeError(ctx, node, err)
			}
		case model.CategoryCores:
			if err := c.CollectCores(ctx, node, item.Payload); err != nil {
				logger.Error().Err(err).Msg("core collection failed")
				c.recordNodeError(ctx, node, err)
			}
		}
	}
	logger.Info().Dur("elapsed", c.now().Sub(start)).Msg("node collected")
}

// CollectCores parses a core inventory and fetches the enabled per-core
// endpoints of every core, at most Config.CoreConcurrency cores at a time.
// Only a parse failure is returned; fetch failures are recorded as items.
func (c *Collector) CollectCores(ctx context.Context, node string, inventory []byte) error {
	cores, err := client.ParseCoreInventory(inventory)
	if err != nil {
		return errors.WrapWithContext(errors.KindParse, "read core inventory", err, map[string]any{"node": node})
	}
	endpoints := c.Config.CoreEndpoints()
	if len(endpoints) == 0 || len(cores) == 0 {
		return nil
	}
	c.Logger.Debug().Str("node", node).Int("cores", len(cores)).Msg("collecting cores")

	g := new(errgroup.Group)
	g.SetLimit(max(1, c.Config.CoreConcurrency))
	for _, core := range cores {
		core := core
		g.Go(func() error {
			for _, cat := range endpoints {
				c.record(ctx, c.fetch(ctx, cat, node, core, client.CoreURL(node, core, cat)))
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Collector) fetch(ctx context.Context, cat model.Category, node, core, url string) model.Item {
	start := time.Now()
	body, err := c.Client.Get(ctx, url)
	item := model.Item{
		Category: cat,
		Node:     node,
		Core:     core,
		URL:      url,
		Elapsed:  time.Since(start),
	}
	if err != nil {
		item.Err = err
	} else {
		item.Payload = body
	}
	return item
}

// record hands item to the Recorder. A duplicate key is recorded as a node
// error so the rejected artifact is still visible in the output.
func (c *Collector) record(ctx context.Context, item model.Item) {
	if c.Observer != nil {
		c.Observer.ObserveFetch(item.Category, item.Failed(), item.Elapsed)
	}
	err := c.Recorder.Record(ctx, item)
	switch {
	case err == nil:
	case errors.IsKind(err, errors.KindDuplicate):
		c.Logger.Warn().Err(err).Str("key", item.Key()).Msg("artifact key collision")
		c.recordNodeError(ctx, item.Node, err)
	default:
		c.Logger.Error().Err(err).Str("key", item.Key()).Msg("failed to record artifact")
	}
}

func (c *Collector) recordNodeError(ctx context.Context, node string, err error) {
	item := model.Item{
		Category: model.CategoryNodeError,
		Node:     node,
		Token:    model.NewToken(c.now()),
		Err:      err,
	}
	if rerr := c.Recorder.Record(ctx, item); rerr != nil {
		c.Logger.Error().Err(rerr).Str("node", node).AnErr("cause", err).Msg("failed to record node error")
	}
}

func (c *Collector) noteCollections(payload []byte) error {
	status, err := client.ParseClusterStatus(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.collections == nil {
		c.collections = make(map[string]struct{})
	}
	for _, name := range status.CollectionNames() {
		c.collections[name] = struct{}{}
	}
	return nil
}

func (c *Collector) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
