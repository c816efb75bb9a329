// Package report turns a decision log back into per-rule redirect activity.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/pathgate/pathgate/internal/logging"
	"github.com/pathgate/pathgate/internal/redirect"
)

const topN = 5

// Summary is the aggregate view of a decision log.
type Summary struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Actions Actions   `json:"actions"`

	// Rules has one entry per rule of the table the log is read against,
	// in table order, including rules that never fired.
	Rules []RuleStats `json:"rules"`
	// Stale holds redirects recorded under a rule the table no longer has.
	Stale []RuleStats `json:"stale,omitempty"`

	PassPaths []Count `json:"pass_paths,omitempty"`
	Limited   []Count `json:"limited_clients,omitempty"`
	Latency   Latency `json:"latency_ms"`
}

type Actions struct {
	Total    int `json:"total"`
	Redirect int `json:"redirect"`
	Pass     int `json:"pass"`
	Limited  int `json:"limited"`
	Reject   int `json:"reject"`
}

// RuleStats counts the redirects one rule produced, split by status code.
type RuleStats struct {
	Index    int         `json:"index"`
	Rule     string      `json:"rule"`
	Hits     int         `json:"hits"`
	Statuses map[int]int `json:"statuses,omitempty"`
	Last     time.Time   `json:"last,omitzero"`
}

type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type Latency struct {
	P50 int64 `json:"p50"`
	P90 int64 `json:"p90"`
	P99 int64 `json:"p99"`
	Max int64 `json:"max"`
}

// Reader loads a decision log, keeping only entries at or after Since when
// it is set.
type Reader struct {
	Since time.Time
}

func (r *Reader) Read(path string) ([]logging.Decision, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	return r.Decode(file)
}

func (r *Reader) Decode(in io.Reader) ([]logging.Decision, error) {
	var decisions []logging.Decision
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var d logging.Decision
		if err := json.Unmarshal([]byte(text), &d); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !r.Since.IsZero() && d.Timestamp.Before(r.Since) {
			continue
		}
		decisions = append(decisions, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// Summarize aggregates decisions against table. A redirect is credited to
// table rule i only when its logged index, match and target all agree with
// that rule; anything else is reported as stale. With a nil table the rule
// section is built from the log alone.
func Summarize(decisions []logging.Decision, table *redirect.Table) Summary {
	s := Summary{Rules: tableStats(table)}
	stale := map[redirect.Rule]*RuleStats{}
	passes := map[string]int{}
	clients := map[string]int{}
	durations := make([]int64, 0, len(decisions))

	for _, d := range decisions {
		if s.Start.IsZero() || d.Timestamp.Before(s.Start) {
			s.Start = d.Timestamp
		}
		if d.Timestamp.After(s.End) {
			s.End = d.Timestamp
		}
		s.Actions.Total++
		durations = append(durations, d.DurationMS)

		switch d.Action {
		case logging.ActionRedirect:
			s.Actions.Redirect++
			rule := redirect.Rule{Match: d.Match, Target: d.Target}
			stats := ruleFor(s.Rules, table, d.Rule, rule)
			if stats == nil {
				stats = stale[rule]
				if stats == nil {
					stats = &RuleStats{Index: d.Rule, Rule: rule.String()}
					stale[rule] = stats
				}
			}
			stats.add(d)
		case logging.ActionPass:
			s.Actions.Pass++
			passes[d.Path]++
		case logging.ActionLimited:
			s.Actions.Limited++
			clients[d.ClientIP]++
		case logging.ActionReject:
			s.Actions.Reject++
		}
	}

	for _, stats := range stale {
		s.Stale = append(s.Stale, *stats)
	}
	slices.SortFunc(s.Stale, func(a, b RuleStats) int {
		if a.Index != b.Index {
			return a.Index - b.Index
		}
		return strings.Compare(a.Rule, b.Rule)
	})
	if table == nil {
		s.Rules, s.Stale = s.Stale, nil
	}

	s.PassPaths = top(passes, topN)
	s.Limited = top(clients, topN)
	s.Latency = latency(durations)
	return s
}

func tableStats(table *redirect.Table) []RuleStats {
	if table == nil {
		return nil
	}
	rules := table.Rules()
	stats := make([]RuleStats, len(rules))
	for i, rule := range rules {
		stats[i] = RuleStats{Index: i, Rule: rule.String()}
	}
	return stats
}

func ruleFor(stats []RuleStats, table *redirect.Table, index int, rule redirect.Rule) *RuleStats {
	if table == nil || index < 0 || index >= len(stats) {
		return nil
	}
	if table.Rules()[index] != rule {
		return nil
	}
	return &stats[index]
}

func (r *RuleStats) add(d logging.Decision) {
	r.Hits++
	if r.Statuses == nil {
		r.Statuses = map[int]int{}
	}
	r.Statuses[d.StatusCode]++
	if d.Timestamp.After(r.Last) {
		r.Last = d.Timestamp
	}
}

func top(counts map[string]int, n int) []Count {
	out := make([]Count, 0, len(counts))
	for key, count := range counts {
		out = append(out, Count{Key: key, Count: count})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Key, b.Key)
	})
	if len(out) > n {
		out = out[:n]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// latency uses the nearest-rank method.
func latency(durations []int64) Latency {
	if len(durations) == 0 {
		return Latency{}
	}
	sorted := slices.Clone(durations)
	slices.Sort(sorted)
	rank := func(p float64) int64 {
		i := int(math.Ceil(p*float64(len(sorted)))) - 1
		return sorted[max(i, 0)]
	}
	return Latency{
		P50: rank(0.50),
		P90: rank(0.90),
		P99: rank(0.99),
		Max: sorted[len(sorted)-1],
	}
}
