package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dm/search-insights/internal/client"
	"github.com/dm/search-insights/internal/config"
	"github.com/dm/search-insights/internal/engine"
	"github.com/dm/search-insights/internal/logging"
	"github.com/dm/search-insights/internal/report"
	"github.com/dm/search-insights/internal/retry"
	"github.com/dm/search-insights/internal/zookeeper"
)

const reportWidth = 80

type app struct {
	stdout    io.Writer
	stderr    io.Writer
	lookupEnv func(string) (string, bool)
	version   string
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:                      "insights",
		Usage:                     "Capture a diagnostic snapshot of a Solr cluster",
		Version:                   a.version,
		UseShortOptionHandling:    true,
		DisableSliceFlagSeparator: true,
		Description: `Dumps the ZooKeeper tree and fetches the admin endpoints of every Solr node
and core into a directory for offline analysis. Nothing in the cluster is modified.

Basic auth for Solr is read from SOLR_AUTH_USER and SOLR_AUTH_PASSWORD; both must be set.

Examples:
  insights -c zk1:2181,zk2:2181/solr -z -s -n prod -o ./snapshot
  insights -d http://solr1:8983,http://solr2:8983 -s -n prod -o ./snapshot -e`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "zkhost", Aliases: []string{"c"}, Usage: "ZooKeeper connect string (host:port[,host:port][/chroot])"},
			&cli.StringFlag{Name: "direct-solr-urls", Aliases: []string{"d"}, Usage: "comma-separated Solr base URLs; skips node discovery"},
			&cli.BoolFlag{Name: "collect-zk-metrics", Aliases: []string{"z"}, Usage: "dump the ZooKeeper tree"},
			&cli.BoolFlag{Name: "collect-solr-metrics", Aliases: []string{"s"}, Usage: "collect node and core endpoints"},
			&cli.StringFlag{Name: "cluster-name", Aliases: []string{"n"}, Usage: "cluster name recorded in collector.properties (required)"},
			&cli.StringSliceFlag{Name: "metadata", Aliases: []string{"m"}, Usage: "extra key=value for collector.properties (repeatable)"},
			&cli.StringFlag{Name: "output-directory", Aliases: []string{"o"}, Usage: "directory the snapshot is written to (required)"},
			&cli.BoolFlag{Name: "disable-expensive-operations", Aliases: []string{"e"}, Usage: "skip the luke and logs endpoints"},
			&cli.BoolFlag{Name: "disable-metrics", Usage: "skip /admin/metrics"},
			&cli.BoolFlag{Name: "disable-threads", Usage: "skip the thread dump"},
			&cli.BoolFlag{Name: "disable-logs", Usage: "skip recent log entries"},
			&cli.BoolFlag{Name: "disable-overseer", Usage: "skip overseer status"},
			&cli.BoolFlag{Name: "disable-segments", Usage: "skip per-core segment reports"},
			&cli.BoolFlag{Name: "disable-luke", Usage: "skip per-core luke reports"},
			&cli.BoolFlag{Name: "disable-plugins", Usage: "skip per-core plugin reports"},
			&cli.IntFlag{Name: "concurrency", Usage: "nodes collected in parallel", Value: config.DefaultConcurrency},
			&cli.IntFlag{Name: "core-concurrency", Usage: "cores collected in parallel per node", Value: config.DefaultCoreConcurrency},
			&cli.DurationFlag{Name: "request-timeout", Usage: "timeout for each Solr request", Value: config.DefaultRequestTimeout},
			&cli.FloatFlag{Name: "max-rps", Usage: "cap on Solr requests per second across all nodes (0 = unlimited)"},
			&cli.BoolFlag{Name: "insecure", Usage: "skip TLS certificate verification"},
			&cli.DurationFlag{Name: "zk-session-timeout", Usage: "ZooKeeper session timeout", Value: config.DefaultZKSessionTimeout},
			&cli.StringFlag{Name: "log-level", Usage: "log level (trace, debug, info, warn, error)", Value: "info"},
			&cli.StringFlag{Name: "log-format", Usage: "log format (pretty, json)", Value: "pretty"},
			&cli.StringFlag{Name: "config", Usage: "YAML file with defaults for the flags above"},
		},
		Action: a.run,
	}
}

func (a *app) run(ctx context.Context, cmd *cli.Command) error {
	logFormat := cmd.String("log-format")
	if logFormat != "pretty" && logFormat != "json" {
		return fmt.Errorf("unknown log format: %q", logFormat)
	}
	lc := logging.DefaultConfig()
	lc.Level = cmd.String("log-level")
	lc.Pretty = logFormat == "pretty"
	lc.Output = a.stderr
	if _, err := logging.ParseLevel(lc.Level); err != nil {
		return err
	}
	logger := logging.New(lc)

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	auth, ok := config.AuthFromEnv(a.lookupEnv)
	if !ok {
		logger.Info().Msgf("%s/%s not both set, Solr requests are unauthenticated",
			config.EnvAuthUser, config.EnvAuthPassword)
	}
	cfg.Auth = auth

	hc, err := client.NewDefaultClient(client.ClientConfig{
		Auth:               cfg.Auth,
		InsecureSkipVerify: cfg.Insecure,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRPS:             cfg.MaxRPS,
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("version", a.version).
		Str("cluster", cfg.ClusterName).
		Str("output", cfg.OutputDir).
		Stringer("auth", cfg.Auth).
		Msg("starting collection")

	runner := &engine.Runner{
		Config:  cfg,
		Version: a.version,
		Client:  hc,
		Dial: zookeeper.Dialer(zookeeper.Options{
			SessionTimeout: cfg.ZKSessionTimeout,
			Retry:          retry.Default,
			Logger:         logger,
		}),
		Logger: logger,
	}
	summary, err := runner.Run(ctx)
	if summary.OutputDir != "" {
		fmt.Fprintln(a.stdout, report.Render(summary, reportWidth))
	}
	return err
}

// resolveConfig starts from the --config file (or the defaults) and applies
// every flag the operator set explicitly.
func resolveConfig(cmd *cli.Command) (config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return cfg, err
		}
	}

	setString := func(name string, dst *string) {
		if cmd.IsSet(name) {
			*dst = cmd.String(name)
		}
	}
	setBool := func(name string, dst *bool) {
		if cmd.IsSet(name) {
			*dst = cmd.Bool(name)
		}
	}
	setInt := func(name string, dst *int) {
		if cmd.IsSet(name) {
			*dst = int(cmd.Int(name))
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if cmd.IsSet(name) {
			*dst = cmd.Duration(name)
		}
	}

	setString("zkhost", &cfg.ZKHost)
	if cmd.IsSet("direct-solr-urls") {
		cfg.DirectURLs = config.SplitList(cmd.String("direct-solr-urls"))
	}
	setBool("collect-zk-metrics", &cfg.CollectZK)
	setBool("collect-solr-metrics", &cfg.CollectSolr)
	setString("cluster-name", &cfg.ClusterName)
	if cmd.IsSet("metadata") {
		cfg.Metadata = cmd.StringSlice("metadata")
	}
	setString("output-directory", &cfg.OutputDir)

	setBool("disable-expensive-operations", &cfg.DisableExpensive)
	setBool("disable-metrics", &cfg.Disable.Metrics)
	setBool("disable-threads", &cfg.Disable.Threads)
	setBool("disable-logs", &cfg.Disable.Logs)
	setBool("disable-overseer", &cfg.Disable.Overseer)
	setBool("disable-segments", &cfg.Disable.Segments)
	setBool("disable-luke", &cfg.Disable.Luke)
	setBool("disable-plugins", &cfg.Disable.Plugins)

	setInt("concurrency", &cfg.Concurrency)
	setInt("core-concurrency", &cfg.CoreConcurrency)
	setDuration("request-timeout", &cfg.RequestTimeout)
	if cmd.IsSet("max-rps") {
		cfg.MaxRPS = cmd.Float("max-rps")
	}
	setBool("insecure", &cfg.Insecure)
	setDuration("zk-session-timeout", &cfg.ZKSessionTimeout)

	return cfg, nil
}
