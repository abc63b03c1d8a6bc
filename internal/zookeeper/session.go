// Package zookeeper reads the cluster's coordination namespace: a session
// wrapper over go-zookeeper with chroot support and bounded retries, and a
// breadth-first dumper producing an ordered snapshot.
package zookeeper

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/rs/zerolog"

	"github.com/dm/search-insights/internal/errors"
	"github.com/dm/search-insights/internal/retry"
)

// ErrNoNode is returned (wrapped) when a path does not exist.
var ErrNoNode = zk.ErrNoNode

// Reader is the read-only view of the namespace used by the dumper and the
// topology resolver.
type Reader interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Children(ctx context.Context, path string) ([]string, error)
}

// Session is a Reader owning a connection.
type Session interface {
	Reader
	Close()
}

// DialFunc opens a Session for a connect string.
type DialFunc func(ctx context.Context, connect string) (Session, error)

// Options configures Dial.
type Options struct {
	SessionTimeout time.Duration
	Retry          retry.Config
	Logger         zerolog.Logger
}

// conn is the subset of *zk.Conn the client uses.
type conn interface {
	Get(path string) ([]byte, *zk.Stat, error)
	Children(path string) ([]string, *zk.Stat, error)
	Close()
}

// Client is a Session backed by a go-zookeeper connection.
type Client struct {
	conn   conn
	chroot string
	retry  retry.Config
	logger zerolog.Logger
}

// Dialer returns a DialFunc bound to opts.
func Dialer(opts Options) DialFunc {
	return func(ctx context.Context, connect string) (Session, error) {
		return Dial(ctx, connect, opts)
	}
}

// Dial connects to the ensemble in connect ("host1:2181,host2:2181/chroot")
// and waits until a session is established, the session timeout elapses, or
// ctx is done.
func Dial(ctx context.Context, connect string, opts Options) (*Client, error) {
	servers, chroot, err := ParseConnectString(connect)
	if err != nil {
		return nil, err
	}
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = 15 * time.Second
	}
	logger := opts.Logger.With().Str("component", "zookeeper").Logger()

	zc, events, err := zk.Connect(servers, opts.SessionTimeout, zk.WithLogger(zkLogger{logger}))
	if err != nil {
		return nil, errors.WrapWithContext(errors.KindConnectivity, "connect to zookeeper", err,
			map[string]any{"zkhost": connect})
	}

	if err := waitForSession(ctx, events, opts.SessionTimeout); err != nil {
		zc.Close()
		return nil, errors.WrapWithContext(errors.KindConnectivity, "establish zookeeper session", err,
			map[string]any{"zkhost": connect})
	}
	// go-zookeeper panics if its event channel fills up.
	go func() {
		for ev := range events {
			logger.Debug().Str("state", ev.State.String()).Str("server", ev.Server).Msg("session event")
		}
	}()

	logger.Debug().Strs("servers", servers).Str("chroot", chroot).Msg("session established")
	return newClient(zc, chroot, opts.Retry, logger), nil
}

func newClient(c conn, chroot string, rc retry.Config, logger zerolog.Logger) *Client {
	return &Client{conn: c, chroot: chroot, retry: rc, logger: logger}
}

func waitForSession(ctx context.Context, events <-chan zk.Event, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("no session after %s", timeout)
		case ev, ok := <-events:
			if !ok {
				return zk.ErrClosing
			}
			switch ev.State {
			case zk.StateHasSession:
				return nil
			case zk.StateAuthFailed:
				return zk.ErrAuthFailed
			}
		}
	}
}

// Get returns the value stored at path. A nil slice means the node has no value.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := c.do(ctx, func() error {
		var err error
		data, _, err = c.conn.Get(c.fullPath(path))
		return err
	})
	if err != nil {
		return nil, errors.WrapWithContext(errors.KindConnectivity, "read zookeeper value", err,
			map[string]any{"path": path})
	}
	return data, nil
}

// Children returns the child names of path.
func (c *Client) Children(ctx context.Context, path string) ([]string, error) {
	var children []string
	err := c.do(ctx, func() error {
		var err error
		children, _, err = c.conn.Children(c.fullPath(path))
		return err
	})
	if err != nil {
		return nil, errors.WrapWithContext(errors.KindConnectivity, "list zookeeper children", err,
			map[string]any{"path": path})
	}
	return children, nil
}

// Close ends the session.
func (c *Client) Close() {
	c.conn.Close()
}

func (c *Client) do(ctx context.Context, fn func() error) error {
	return retry.Do(ctx, c.retry, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err != nil && isTransient(err) {
			c.logger.Debug().Err(err).Msg("transient zookeeper error")
		}
		return err
	}, isTransient)
}

func (c *Client) fullPath(path string) string {
	if c.chroot == "" {
		return path
	}
	if path == "/" {
		return c.chroot
	}
	return c.chroot + path
}

func isTransient(err error) bool {
	return stderrors.Is(err, zk.ErrConnectionClosed) ||
		stderrors.Is(err, zk.ErrNoServer) ||
		stderrors.Is(err, zk.ErrSessionExpired) ||
		stderrors.Is(err, zk.ErrSessionMoved)
}

// ParseConnectString splits "host1:2181,host2:2181/chroot" into servers and
// an optional chroot without trailing slash.
func ParseConnectString(connect string) ([]string, string, error) {
	connect = strings.TrimSpace(connect)
	if connect == "" {
		return nil, "", errors.New(errors.KindConfiguration, "zookeeper connect string is empty")
	}

	hosts, chroot := connect, ""
	if i := strings.Index(connect, "/"); i >= 0 {
		hosts, chroot = connect[:i], strings.TrimRight(connect[i:], "/")
	}

	var servers []string
	for _, h := range strings.Split(hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			servers = append(servers, h)
		}
	}
	if len(servers) == 0 {
		return nil, "", errors.New(errors.KindConfiguration, fmt.Sprintf("zookeeper connect string %q has no hosts", connect))
	}
	return servers, chroot, nil
}

type zkLogger struct {
	l zerolog.Logger
}

func (z zkLogger) Printf(format string, args ...any) {
	z.l.Debug().Msgf(format, args...)
}
