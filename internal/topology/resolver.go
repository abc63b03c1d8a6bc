// Package topology decides which search nodes a run collects from.
package topology

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dm/search-insights/internal/errors"
	"github.com/dm/search-insights/internal/zookeeper"
)

// Namespace locations read during resolution.
const (
	ClusterPropsPath = "/clusterprops.json"
	LiveNodesPath    = "/live_nodes"

	// DefaultScheme is used when the cluster properties do not name one.
	DefaultScheme = "http"
	// ContextPath is the suffix every node base URL ends with.
	ContextPath = "/solr"
)

// Topology is the resolved set of node base URLs. It is not modified after
// Resolve returns.
type Topology struct {
	URLScheme string
	Nodes     []string
	// FromCoordination is true when Nodes came from the live node registry.
	FromCoordination bool
}

// ClusterProps is the subset of the cluster properties record the resolver
// reads.
type ClusterProps struct {
	URLScheme *string `json:"urlScheme,omitempty"`
}

// Resolver resolves the topology from explicit addresses or the
// coordination service.
type Resolver struct {
	Dial   zookeeper.DialFunc
	Logger zerolog.Logger
}

// Resolve returns the node list for a run. Explicit addresses win; otherwise
// the live nodes registered in the coordination service at zkHost are used.
// The coordination session is opened and closed within the call.
func (r *Resolver) Resolve(ctx context.Context, direct []string, zkHost string) (*Topology, error) {
	if len(direct) > 0 {
		nodes := Normalize(direct)
		if len(nodes) == 0 {
			return nil, errors.New(errors.KindConfiguration, "direct node list contains no addresses")
		}
		r.Logger.Info().Strs("nodes", nodes).Msg("using direct node addresses")
		return &Topology{URLScheme: schemeOf(nodes[0]), Nodes: nodes}, nil
	}

	if strings.TrimSpace(zkHost) == "" {
		return nil, errors.New(errors.KindConfiguration, "node discovery needs a ZK host (-c / --zkhost) or --direct-solr-urls")
	}
	if r.Dial == nil {
		return nil, errors.New(errors.KindConfiguration, "no coordination dialer configured")
	}

	session, err := r.Dial(ctx, zkHost)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	scheme, err := readScheme(ctx, session)
	if err != nil {
		return nil, err
	}

	live, err := session.Children(ctx, LiveNodesPath)
	if err != nil {
		return nil, errors.Wrap(errors.KindConnectivity, "list live nodes", err)
	}

	urls := make([]string, 0, len(live))
	for _, name := range live {
		urls = append(urls, NodeURL(scheme, name))
	}
	nodes := Normalize(urls)
	r.Logger.Info().Str("scheme", scheme).Strs("nodes", nodes).Msg("discovered live nodes")

	return &Topology{URLScheme: scheme, Nodes: nodes, FromCoordination: true}, nil
}

// readScheme reads urlScheme from the cluster properties. A missing record or
// key means DefaultScheme.
func readScheme(ctx context.Context, r zookeeper.Reader) (string, error) {
	raw, err := r.Get(ctx, ClusterPropsPath)
	if err != nil {
		if stderrors.Is(err, zookeeper.ErrNoNode) {
			return DefaultScheme, nil
		}
		return "", errors.Wrap(errors.KindConnectivity, "read cluster properties", err)
	}
	props, err := ParseClusterProps(raw)
	if err != nil {
		return "", err
	}
	if props.URLScheme == nil || strings.TrimSpace(*props.URLScheme) == "" {
		return DefaultScheme, nil
	}
	return strings.ToLower(strings.TrimSpace(*props.URLScheme)), nil
}

// ParseClusterProps decodes the cluster properties record. An empty record
// decodes to the zero value.
func ParseClusterProps(raw []byte) (ClusterProps, error) {
	var props ClusterProps
	if len(strings.TrimSpace(string(raw))) == 0 {
		return props, nil
	}
	if err := json.Unmarshal(raw, &props); err != nil {
		return props, errors.WrapWithContext(errors.KindParse, "decode cluster properties", err,
			map[string]any{"path": ClusterPropsPath})
	}
	return props, nil
}

// NodeURL maps a live node name ("host:port_context") to a base URL. The
// first underscore separates the address from the context path, and any
// further underscores are path separators.
func NodeURL(scheme, liveNode string) string {
	addr, ctxPath, found := strings.Cut(liveNode, "_")
	if !found {
		return scheme + "://" + addr
	}
	return scheme + "://" + addr + "/" + strings.ReplaceAll(ctxPath, "_", "/")
}

// Normalize trims each address, guarantees the ContextPath suffix, and drops
// empty and duplicate entries while keeping the first occurrence's position.
func Normalize(addrs []string) []string {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimRight(strings.TrimSpace(a), "/")
		if a == "" {
			continue
		}
		if !strings.HasSuffix(a, ContextPath) {
			a += ContextPath
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func schemeOf(u string) string {
	if scheme, _, ok := strings.Cut(u, "://"); ok {
		return scheme
	}
	return DefaultScheme
}
