package model

import "time"

// Category names one kind of collected artifact. Node-level categories double
// as the output subdirectory under solr/.
type Category string

// Node-level endpoint categories, in collection order.
const (
	CategoryMetrics      Category = "metrics"
	CategoryThreads      Category = "threads"
	CategoryLogs         Category = "logs"
	CategoryClusterState Category = "clusterstate"
	CategoryOverseer     Category = "overseer"
	CategoryCores        Category = "cores"
)

// Core-level endpoint categories.
const (
	CategorySegments Category = "segments"
	CategoryLuke     Category = "luke"
	CategoryPlugins  Category = "plugins"
)

// Categories that are not HTTP endpoints.
const (
	// CategoryZookeeper is the coordination tree dump.
	CategoryZookeeper Category = "zookeeper"
	// CategoryNodeError is an uncaught failure while iterating one node.
	CategoryNodeError Category = "errors"
)

// Item is one collected artifact: a node-level endpoint response, a per-core
// endpoint response, or an error. Exactly one of Payload and Err is set.
type Item struct {
	Category Category
	// Node is the node base URL the artifact came from.
	Node string
	// Core is set for per-core artifacts only.
	Core string
	// Token distinguishes node error artifacts; see NewToken.
	Token string
	// URL is the fetched address, when there was one.
	URL     string
	Payload []byte
	Err     error
	// Size is the number of bytes persisted for this item.
	Size    int64
	Elapsed time.Duration
}

// Failed reports whether the item carries an error instead of a payload.
func (i Item) Failed() bool {
	return i.Err != nil
}

// IsCore reports whether the item belongs to a single core.
func (i Item) IsCore() bool {
	return i.Core != ""
}

// Key returns the artifact key, unique within a run. It is also the path of
// the artifact relative to the output directory, minus any error suffix.
func (i Item) Key() string {
	switch {
	case i.Category == CategoryZookeeper:
		return "zookeeper/zkdump"
	case i.Category == CategoryNodeError:
		return "solr/errors/" + i.Token
	case i.IsCore():
		return "solr/cores/" + i.Core + "_" + string(i.Category)
	default:
		return "solr/" + string(i.Category) + "/" + NodeIdentity(i.Node)
	}
}
