// Package report renders the final snapshot three ways: a machine JSON
// dump, a condensed console summary, and a self-contained HTML page.
//
// The HTML page color-codes metrics by fixed presentation bands (error
// rate under 5% and p95 latency under 500ms read as "good"). Those
// bands are cosmetic and independent of the configured thresholds: a
// run can look "good" and still fail its thresholds, and vice versa.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"loadpulse/internal/metrics"
	"loadpulse/internal/styles"
	"loadpulse/internal/threshold"
)

type ScenarioMeta struct {
	Name     string            `json:"name"`
	Executor string            `json:"executor"`
	Tags     map[string]string `json:"tags,omitempty"`
}

type Meta struct {
	Target    string         `json:"target"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration_ns"`
	Scenarios []ScenarioMeta `json:"scenarios"`
}

// Report is the frozen aggregate handed to every output form.
type Report struct {
	Meta       Meta               `json:"meta"`
	Metrics    *metrics.Snapshot  `json:"metrics"`
	Thresholds threshold.Outcome  `json:"thresholds"`
	Passed     bool               `json:"passed"`
}

func New(meta Meta, snap *metrics.Snapshot, outcome threshold.Outcome) *Report {
	return &Report{
		Meta:       meta,
		Metrics:    snap,
		Thresholds: outcome,
		Passed:     outcome.Passed,
	}
}

// WriteJSON writes the complete structured dump.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Summary renders the condensed console view: totals, error rate,
// latency headline figures, throughput, and the threshold verdicts.
func (r *Report) Summary() string {
	s := strings.Builder{}
	snap := r.Metrics

	dur := snap.Trends[metrics.MetricDuration]
	checks := snap.Rates[metrics.MetricChecks]

	s.WriteString(styles.Title.Render("Load Test Results"))
	s.WriteString("\n\n")

	overview := fmt.Sprintf(
		"Target:    %s\nDuration:  %s\nRequests:  %d\nIterations:%d\nThroughput:%.1f req/s\nError Rate:%.2f%%\nChecks:    %d/%d passed",
		r.Meta.Target,
		r.Meta.Duration.Round(time.Millisecond),
		snap.Counters[metrics.MetricRequests],
		snap.Counters[metrics.MetricIterations],
		snap.RequestRate(),
		snap.ErrorRate()*100,
		checks.Trues, checks.Total,
	)
	s.WriteString(styles.Box.Render(overview))
	s.WriteString("\n\n")

	latency := fmt.Sprintf(
		"Avg: %.2f ms\nMin: %.2f ms\nP50: %.2f ms\nP95: %.2f ms\nP99: %.2f ms\nMax: %.2f ms",
		dur.Avg, dur.Min, dur.P50, dur.P95, dur.P99, dur.Max,
	)
	s.WriteString(styles.Active.Render("Latency"))
	s.WriteString("\n")
	s.WriteString(styles.Box.Render(latency))
	s.WriteString("\n")

	if len(r.Thresholds.Results) > 0 {
		s.WriteString("\n")
		s.WriteString(styles.Active.Render("Thresholds"))
		s.WriteString("\n")
		for _, res := range r.Thresholds.Results {
			line := fmt.Sprintf("%s (actual %.2f)", res.Threshold.String(), res.Actual)
			if res.Passed {
				s.WriteString("  " + styles.Success.Render("✓ "+line))
			} else {
				s.WriteString("  " + styles.Error.Render("✗ "+line))
			}
			s.WriteString("\n")
		}
	}

	s.WriteString("\n")
	if r.Passed {
		s.WriteString(styles.Success.Render("VERDICT: PASS"))
	} else {
		s.WriteString(styles.Error.Render("VERDICT: FAIL"))
	}
	s.WriteString("\n")

	return s.String()
}
