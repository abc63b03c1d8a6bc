package zookeeper

import (
	"context"
	"strings"

	"github.com/dm/search-insights/internal/errors"
)

// Dump walks the namespace breadth-first from root and records every path
// with its value. Parents are always recorded before their children.
//
// Any read failure aborts the whole dump; a partial tree is not returned.
// The namespace is assumed to be a tree, so there is no cycle detection.
func Dump(ctx context.Context, r Reader, root string) (*Snapshot, error) {
	if root == "" {
		root = "/"
	}
	snap := newSnapshot()
	queue := []string{root}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.KindConnectivity, "zookeeper dump interrupted", err)
		}

		path := queue[0]
		queue = queue[1:]

		value, err := r.Get(ctx, path)
		if err != nil {
			return nil, dumpError(path, err)
		}
		children, err := r.Children(ctx, path)
		if err != nil {
			return nil, dumpError(path, err)
		}

		snap.put(path, value)
		for _, child := range children {
			queue = append(queue, ChildPath(path, child))
		}
	}
	return snap, nil
}

// ChildPath joins a parent path and a child name with exactly one separator.
func ChildPath(parent, child string) string {
	if strings.HasSuffix(parent, "/") {
		return parent + child
	}
	return parent + "/" + child
}

func dumpError(path string, err error) error {
	return errors.WrapWithContext(errors.KindConnectivity, "zookeeper dump failed", err,
		map[string]any{"path": path})
}
