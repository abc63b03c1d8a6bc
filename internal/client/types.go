package client

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/dm/search-insights/internal/errors"
)

// CoreAdminStatus is the core inventory response (/admin/cores?action=STATUS).
// Status maps core name to its status document, which is kept raw.
type CoreAdminStatus struct {
	ResponseHeader *ResponseHeader             `json:"responseHeader,omitempty"`
	Status         map[string]*json.RawMessage `json:"status"`
}

// ResponseHeader is the header every admin response carries.
type ResponseHeader struct {
	Status int `json:"status"`
	QTime  int `json:"QTime"`
}

// ClusterStatus is the subset of the CLUSTERSTATUS response the collector
// summarizes.
type ClusterStatus struct {
	ResponseHeader *ResponseHeader `json:"responseHeader,omitempty"`
	Cluster        *struct {
		Collections map[string]json.RawMessage `json:"collections"`
		LiveNodes   []string                   `json:"live_nodes"`
	} `json:"cluster"`
}

// ParseCoreInventory returns the sorted core names from a core inventory
// response. A body that is not JSON, lacks a "status" object, or names a core
// that is not a single path element is a PARSE error.
func ParseCoreInventory(body []byte) ([]string, error) {
	var inv CoreAdminStatus
	if err := json.Unmarshal(body, &inv); err != nil {
		return nil, errors.Wrap(errors.KindParse, "decode core inventory", err)
	}
	if inv.Status == nil {
		return nil, errors.New(errors.KindParse, `core inventory has no "status" object`)
	}
	names := make([]string, 0, len(inv.Status))
	for name := range inv.Status {
		if name == "" {
			return nil, errors.New(errors.KindParse, "core inventory lists a core with an empty name")
		}
		if !isPathElement(name) {
			return nil, errors.WrapWithContext(errors.KindParse, "core inventory lists an unsafe core name", nil,
				map[string]any{"core": name})
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// isPathElement reports whether name can be used as one file name component.
func isPathElement(name string) bool {
	if name == "." || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// ParseClusterStatus decodes a CLUSTERSTATUS response. A body without a
// "cluster" object is a PARSE error.
func ParseClusterStatus(body []byte) (*ClusterStatus, error) {
	var cs ClusterStatus
	if err := json.Unmarshal(body, &cs); err != nil {
		return nil, errors.Wrap(errors.KindParse, "decode cluster status", err)
	}
	if cs.Cluster == nil {
		return nil, errors.New(errors.KindParse, `cluster status has no "cluster" object`)
	}
	return &cs, nil
}

// CollectionNames returns the sorted collection names.
func (cs *ClusterStatus) CollectionNames() []string {
	if cs == nil || cs.Cluster == nil {
		return nil
	}
	names := make([]string, 0, len(cs.Cluster.Collections))
	for name := range cs.Cluster.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
