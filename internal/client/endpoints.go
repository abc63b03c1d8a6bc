package client

import (
	"strconv"
	"strings"
	"time"

	"github.com/dm/search-insights/internal/model"
)

// LogWindow is how far back the log endpoint is asked to look.
const LogWindow = 24 * time.Hour

// NodeEndpoint is one entry of the node-level catalog.
type NodeEndpoint struct {
	Category model.Category
	// Path is relative to the node base URL.
	Path string
}

// NodeEndpoints returns the node-level catalog in collection order. The
// logs entry is windowed to LogWindow before now.
func NodeEndpoints(now time.Time) []NodeEndpoint {
	since := strconv.FormatInt(now.Add(-LogWindow).UnixMilli(), 10)
	return []NodeEndpoint{
		{Category: model.CategoryMetrics, Path: "/admin/metrics"},
		{Category: model.CategoryThreads, Path: "/admin/info/threads"},
		{Category: model.CategoryLogs, Path: "/admin/info/logging?since=" + since},
		{Category: model.CategoryClusterState, Path: "/admin/collections?action=CLUSTERSTATUS"},
		{Category: model.CategoryOverseer, Path: "/admin/collections?action=OVERSEERSTATUS"},
		{Category: model.CategoryCores, Path: "/admin/cores?action=STATUS"},
	}
}

// NodeURL joins a node base URL and a catalog path.
func NodeURL(node string, ep NodeEndpoint) string {
	return strings.TrimRight(node, "/") + ep.Path
}

// CoreURL returns <node>/<core>/admin/<endpoint>.
func CoreURL(node, core string, endpoint model.Category) string {
	return strings.TrimRight(node, "/") + "/" + core + "/admin/" + string(endpoint)
}
