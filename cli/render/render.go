// Package render provides output rendering for the railstream CLI.
//
// Format selection rules:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format flag always overrides defaults
//   - Invalid formats are errors
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/trelay/railstream/analysis"
	"github.com/trelay/railstream/stations"
	"github.com/trelay/railstream/types"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format Format
	out    io.Writer
}

// NewRenderer creates a renderer from CLI context, applying the TTY
// default rules.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		if isTTY(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}
	return &Renderer{format: format, out: os.Stdout}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, out io.Writer) *Renderer {
	return &Renderer{format: format, out: out}
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		return enc.Encode(data)
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

func (r *Renderer) renderTable(data any) error {
	switch v := data.(type) {
	case *types.AnalysisResult:
		return r.renderResult(v)
	case types.AnalysisResult:
		return r.renderResult(&v)
	case []stations.Match:
		return r.renderMatches(v)
	default:
		return r.renderKV(data)
	}
}

// renderResult prints the full analysis report: header, per-direction
// delay distributions, and the summary stats.
func (r *Renderer) renderResult(result *types.AnalysisResult) error {
	fmt.Fprintf(r.out, "%s  (%s)\n", result.Route, result.RouteCodes)
	fmt.Fprintf(r.out, "Dates %s, %s, departures %s\n", result.DateRange, result.Days, result.TimeRange)
	fmt.Fprintf(r.out, "Services: %d patterns, %d journeys analyzed\n\n", result.TotalServices, result.AnalyzedServices)

	if err := r.renderDirection("Departures", result.DeparturePerformance); err != nil {
		return err
	}
	fmt.Fprintln(r.out)
	return r.renderDirection("Arrivals", result.ArrivalPerformance)
}

func (r *Renderer) renderDirection(title string, perf types.DirectionPerformance) error {
	fmt.Fprintf(r.out, "%s\n", title)

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, bucket := range analysis.BucketOrder() {
		pct, ok := perf.Histogram[bucket]
		if !ok {
			continue
		}
		count := perf.RawCounts[bucket]
		fmt.Fprintf(w, "  %s\t%5.1f%%\t(%d)\n", bucket, pct, count)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	stats := perf.Stats
	fmt.Fprintf(r.out, "  avg delay %.1f min, on time %.1f%%, late %.1f%%, reliability %.1f%%\n",
		stats.AvgDelay, stats.OnTimePercentage, stats.LatePercentage, perf.Reliability)
	if len(perf.CancellationReasons) > 0 {
		fmt.Fprintf(r.out, "  cancellations: %s\n", strings.Join(perf.CancellationReasons, "; "))
	}
	return nil
}

func (r *Renderer) renderMatches(matches []stations.Match) error {
	if len(matches) == 0 {
		fmt.Fprintln(r.out, "(no results)")
		return nil
	}
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CRS\tNAME\tMATCH")
	for _, m := range matches {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.CRS, m.Name, m.MatchType)
	}
	return w.Flush()
}

// renderKV prints maps and simple payloads as aligned key/value rows.
func (r *Renderer) renderKV(data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var kv map[string]any
	if err := json.Unmarshal(raw, &kv); err != nil {
		// Not an object; print as-is.
		fmt.Fprintf(r.out, "%v\n", data)
		return nil
	}

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s:\t%v\n", k, kv[k])
	}
	return w.Flush()
}

// isTTY returns true if the writer is a TTY.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
