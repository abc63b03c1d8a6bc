// Package sink persists collected artifacts under the output directory.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dm/search-insights/internal/config"
	"github.com/dm/search-insights/internal/errors"
	"github.com/dm/search-insights/internal/model"
)

// PropertiesFile is the run description written at the output root.
const PropertiesFile = "collector.properties"

// Suffixes appended to an artifact key to form its file path.
const (
	ErrorSuffix     = ".error.json"
	NodeErrorSuffix = ".txt"
	SnapshotSuffix  = ".json"
)

// Writer writes each recorded item to its own file and keeps the ledger of
// everything written. It is safe for concurrent use.
type Writer struct {
	root   string
	ledger *model.Collection
	logger zerolog.Logger
}

// NewWriter creates the output directory if needed.
func NewWriter(root string, logger zerolog.Logger) (*Writer, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.WrapWithContext(errors.KindConfiguration, "create output directory", err,
			map[string]any{"path": root})
	}
	return &Writer{
		root:   root,
		ledger: model.NewCollection(),
		logger: logger.With().Str("component", "sink").Logger(),
	}, nil
}

// Root returns the output directory.
func (w *Writer) Root() string { return w.root }

// Ledger returns the items recorded so far.
func (w *Writer) Ledger() *model.Collection { return w.ledger }

// Record persists item. A key that was already recorded is rejected with a
// DUPLICATE error and nothing is written. When the file cannot be written the
// ledger entry is marked failed with the write error, which is also returned.
func (w *Writer) Record(_ context.Context, item model.Item) error {
	data, err := Encode(item)
	if err != nil {
		return err
	}
	item.Size = int64(len(data))

	if err := w.ledger.Add(item); err != nil {
		return err
	}

	rel := ArtifactPath(item)
	if err := w.write(rel, data); err != nil {
		w.ledger.Fail(item.Key(), err)
		return err
	}
	w.logger.Debug().
		Str("path", rel).
		Int64("bytes", item.Size).
		Bool("failed", item.Failed()).
		Msg("artifact written")
	return nil
}

// WriteProperties writes collector.properties: the built-in keys first, then
// metadata in the order given.
func (w *Writer) WriteProperties(version string, ts time.Time, clusterName string, metadata []config.KeyValue) error {
	var b strings.Builder
	writeProperty(&b, "collector-version", version)
	writeProperty(&b, "timestamp", ts.UTC().Format(time.RFC3339))
	writeProperty(&b, "cluster-name", clusterName)
	for _, kv := range metadata {
		writeProperty(&b, kv.Key, kv.Value)
	}
	return w.write(PropertiesFile, []byte(b.String()))
}

func (w *Writer) write(rel string, data []byte) error {
	path := filepath.Join(w.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapWithContext(errors.KindInternal, "create artifact directory", err,
			map[string]any{"path": path})
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapWithContext(errors.KindInternal, "write artifact", err,
			map[string]any{"path": path})
	}
	return nil
}

// ArtifactPath returns the slash-separated path of item relative to the
// output directory.
func ArtifactPath(item model.Item) string {
	key := item.Key()
	switch {
	case item.Category == model.CategoryNodeError:
		return key + NodeErrorSuffix
	case item.Failed():
		return key + ErrorSuffix
	case item.Category == model.CategoryZookeeper:
		return key + SnapshotSuffix
	default:
		return key
	}
}

// ErrorDocument is the serialized form of a failed item.
type ErrorDocument struct {
	Category string         `json:"category"`
	Node     string         `json:"node,omitempty"`
	Core     string         `json:"core,omitempty"`
	URL      string         `json:"url,omitempty"`
	Kind     string         `json:"kind"`
	Error    string         `json:"error"`
	Context  map[string]any `json:"context,omitempty"`
	Elapsed  string         `json:"elapsed,omitempty"`
}

// Encode returns the bytes written for item: the raw payload, a JSON error
// document, or a plain-text report for node iteration failures.
func Encode(item model.Item) ([]byte, error) {
	if !item.Failed() {
		return item.Payload, nil
	}
	if item.Category == model.CategoryNodeError {
		return []byte(nodeErrorText(item)), nil
	}

	doc := ErrorDocument{
		Category: string(item.Category),
		Node:     item.Node,
		Core:     item.Core,
		URL:      item.URL,
		Kind:     string(errors.KindOf(item.Err)),
		Error:    item.Err.Error(),
		Context:  errors.ContextOf(item.Err),
	}
	if item.Elapsed > 0 {
		doc.Elapsed = item.Elapsed.String()
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "encode error document", err)
	}
	return append(data, '\n'), nil
}

func nodeErrorText(item model.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "node: %s\n", item.Node)
	fmt.Fprintf(&b, "kind: %s\n", errors.KindOf(item.Err))
	fmt.Fprintf(&b, "error: %s\n", item.Err)
	return b.String()
}

var propertyEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)

func writeProperty(b *strings.Builder, key, value string) {
	b.WriteString(propertyEscaper.Replace(key))
	b.WriteByte('=')
	b.WriteString(propertyEscaper.Replace(value))
	b.WriteByte('\n')
}
