// Package report renders the end-of-run summary printed to the operator.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dm/search-insights/internal/errors"
	"github.com/dm/search-insights/internal/format"
	"github.com/dm/search-insights/internal/model"
)

// MaxFailures is the number of failure lines shown; the rest are counted.
const MaxFailures = 10

var (
	colorGreen  = lipgloss.Color("#10b981")
	colorYellow = lipgloss.Color("#f59e0b")
	colorRed    = lipgloss.Color("#ef4444")
	colorGray   = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f8fafc")
	colorDark   = lipgloss.Color("#1e293b")
)

var (
	styleHeader = lipgloss.NewStyle().
			Background(colorDark).
			Foreground(colorWhite).
			Bold(true).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().Foreground(colorGray).Width(14)
	styleValue = lipgloss.NewStyle().Foreground(colorWhite)

	styleOK      = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	stylePartial = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	styleFailed  = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	styleDim     = lipgloss.NewStyle().Foreground(colorGray)

	styleTableHeader = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(colorGray)
)

// Render returns the summary laid out for a terminal width columns wide.
func Render(s model.Summary, width int) string {
	if width < 40 {
		width = 40
	}
	var b strings.Builder

	b.WriteString(styleHeader.Width(width).Render("Snapshot " + s.ClusterName + "  " + statusText(s)))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"Output", s.OutputDir},
		{"Nodes", format.Number(int64(s.Nodes))},
		{"Cores", format.Number(int64(s.Cores))},
		{"Collections", format.Number(int64(s.Collections))},
		{"ZK paths", format.Number(int64(s.ZKPaths))},
		{"Artifacts", fmt.Sprintf("%s (%s failed)", format.Number(int64(s.Items)), format.Percent(s.Failed, s.Items))},
		{"Written", format.Bytes(s.Bytes)},
		{"Duration", format.Duration(s.Duration)},
	}
	for _, r := range rows {
		b.WriteString(styleLabel.Render(r[0]) + styleValue.Render(r[1]) + "\n")
	}

	if len(s.ByCategory) > 0 {
		b.WriteString("\n" + renderCategories(s.ByCategory) + "\n")
	}
	if s.Failed > 0 {
		b.WriteString("\n" + renderFailures(s.Failures, width))
	}
	return b.String()
}

func statusText(s model.Summary) string {
	switch {
	case s.Items == 0:
		return styleFailed.Render("EMPTY")
	case s.Failed == 0:
		return styleOK.Render("OK")
	case s.Failed == s.Items:
		return styleFailed.Render("FAILED")
	default:
		return stylePartial.Render("PARTIAL")
	}
}

func renderCategories(by map[model.Category]model.CategoryCount) string {
	cats := make([]string, 0, len(by))
	for c := range by {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)

	var b strings.Builder
	b.WriteString(styleTableHeader.Render(fmt.Sprintf("%-14s%6s%8s", "Category", "OK", "Failed")))
	for _, c := range cats {
		cc := by[model.Category(c)]
		line := fmt.Sprintf("%-14s%6d%8d", c, cc.OK, cc.Failed)
		if cc.Failed > 0 {
			line = stylePartial.Render(line)
		}
		b.WriteString("\n" + line)
	}
	return b.String()
}

func renderFailures(items []model.Item, width int) string {
	var b strings.Builder
	b.WriteString(styleFailed.Render("Failures"))
	for i, it := range items {
		if i == MaxFailures {
			b.WriteString("\n" + styleDim.Render(fmt.Sprintf("... and %d more, see *.error.json and solr/errors/", len(items)-MaxFailures)))
			break
		}
		line := fmt.Sprintf("%s: %s", it.Key(), Classify(it.Err))
		b.WriteString("\n  " + truncate(line, width-2))
	}
	return b.String() + "\n"
}

// Classify reduces an error to a short operator-facing cause.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"):
		return "Connection refused"
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized"):
		return "Authentication failed (401)"
	case strings.Contains(msg, "403") || strings.Contains(msg, "forbidden"):
		return "Authentication failed (403)"
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return "Timeout"
	case isTLSError(msg):
		return "TLS error"
	}
	if status, ok := errors.ContextOf(err)["status"].(int); ok {
		return fmt.Sprintf("HTTP %d", status)
	}
	switch errors.KindOf(err) {
	case errors.KindParse:
		return "Unexpected response"
	case errors.KindDuplicate:
		return "Duplicate artifact"
	}
	return truncate(err.Error(), 40)
}

func isTLSError(msg string) bool {
	return strings.Contains(msg, "tls") || strings.Contains(msg, "x509") || strings.Contains(msg, "certificate")
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
