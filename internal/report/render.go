package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// Format selects how a Summary is written.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
)

func (f Format) Valid() bool {
	switch f {
	case "", FormatText, FormatMarkdown, FormatJSON:
		return true
	}
	return false
}

// Write renders s to w in the given format.
func Write(w io.Writer, s Summary, format Format) error {
	switch format {
	case "", FormatText:
		return WriteText(w, s)
	case FormatMarkdown:
		return WriteMarkdown(w, s)
	case FormatJSON:
		return WriteJSON(w, s)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func WriteText(w io.Writer, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "window\t%s\n", window(s))
	fmt.Fprintf(tw, "requests\t%d\n", s.Actions.Total)
	fmt.Fprintf(tw, "redirect\t%d\n", s.Actions.Redirect)
	fmt.Fprintf(tw, "pass\t%d\n", s.Actions.Pass)
	fmt.Fprintf(tw, "limited\t%d\n", s.Actions.Limited)
	fmt.Fprintf(tw, "reject\t%d\n", s.Actions.Reject)
	fmt.Fprintf(tw, "latency ms\tp50=%d p90=%d p99=%d max=%d\n",
		s.Latency.P50, s.Latency.P90, s.Latency.P99, s.Latency.Max)

	fmt.Fprintln(tw, "\n#\tRULE\tHITS\tSTATUS")
	for _, r := range s.Rules {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", r.Index, r.Rule, r.Hits, statuses(r.Statuses))
	}
	if len(s.Stale) > 0 {
		fmt.Fprintln(tw, "\nstale\tRULE\tHITS\tSTATUS")
		for _, r := range s.Stale {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", r.Index, r.Rule, r.Hits, statuses(r.Statuses))
		}
	}

	writeCounts(tw, "PASS PATH", s.PassPaths)
	writeCounts(tw, "LIMITED CLIENT", s.Limited)
	return tw.Flush()
}

func writeCounts(w io.Writer, title string, counts []Count) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\tCOUNT\n", title)
	for _, c := range counts {
		fmt.Fprintf(w, "%s\t%d\n", c.Key, c.Count)
	}
}

func WriteMarkdown(w io.Writer, s Summary) error {
	var b strings.Builder
	b.WriteString("# pathgate report\n\n")
	fmt.Fprintf(&b, "Window: %s\n\n", window(s))
	b.WriteString("| requests | redirect | pass | limited | reject |\n|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n\n",
		s.Actions.Total, s.Actions.Redirect, s.Actions.Pass, s.Actions.Limited, s.Actions.Reject)
	fmt.Fprintf(&b, "Latency (ms): p50 %d, p90 %d, p99 %d, max %d\n\n",
		s.Latency.P50, s.Latency.P90, s.Latency.P99, s.Latency.Max)

	b.WriteString("## Rules\n\n| # | rule | hits | status |\n|---|---|---|---|\n")
	for _, r := range s.Rules {
		fmt.Fprintf(&b, "| %d | `%s` | %d | %s |\n", r.Index, r.Rule, r.Hits, statuses(r.Statuses))
	}
	if len(s.Stale) > 0 {
		b.WriteString("\n## Stale rules\n\n| # | rule | hits | status |\n|---|---|---|---|\n")
		for _, r := range s.Stale {
			fmt.Fprintf(&b, "| %d | `%s` | %d | %s |\n", r.Index, r.Rule, r.Hits, statuses(r.Statuses))
		}
	}
	for _, section := range []struct {
		title  string
		counts []Count
	}{{"Pass-through paths", s.PassPaths}, {"Rate-limited clients", s.Limited}} {
		if len(section.counts) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", section.title)
		for _, c := range section.counts {
			fmt.Fprintf(&b, "- `%s`: %d\n", c.Key, c.Count)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// statuses renders a status breakdown as "307x2 308x1", lowest code first.
func statuses(codes map[int]int) string {
	if len(codes) == 0 {
		return "-"
	}
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(codes))
	for _, code := range keys {
		parts = append(parts, strconv.Itoa(code)+"x"+strconv.Itoa(codes[code]))
	}
	return strings.Join(parts, " ")
}

func window(s Summary) string {
	if s.Start.IsZero() {
		return "empty"
	}
	return s.Start.UTC().Format(time.RFC3339) + " .. " + s.End.UTC().Format(time.RFC3339)
}
