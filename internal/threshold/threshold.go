// Package threshold parses and evaluates pass/fail rules over the final
// metrics snapshot. A threshold is an expression attached to a metric,
// e.g. "p(95)<500" on http_req_duration or "rate<0.05" on
// http_req_failed. Evaluation happens exactly once, against the frozen
// snapshot, and never mutates metrics.
package threshold

import (
	"fmt"
	"strconv"
	"strings"

	"loadpulse/internal/metrics"
)

// Threshold is one parsed rule.
type Threshold struct {
	Metric string  `json:"metric"`
	Stat   string  `json:"stat"`  // count | rate | avg | min | max | p(N)
	Cmp    string  `json:"cmp"`   // < <= > >= ==
	Limit  float64 `json:"limit"`

	// quantile is set when Stat is p(N).
	quantile float64
	isQuant  bool
}

// Result is the evaluation of one threshold.
type Result struct {
	Threshold
	Actual float64 `json:"actual"`
	Passed bool    `json:"passed"`
}

// Outcome is the run verdict: pass iff every threshold passed.
type Outcome struct {
	Results []Result `json:"results"`
	Passed  bool     `json:"passed"`
}

var comparators = []string{"<=", ">=", "==", "<", ">"}

// Parse turns an expression like "p(95)<500" into a Threshold.
// Whitespace around tokens is ignored.
func Parse(metric, expr string) (Threshold, error) {
	compact := strings.ReplaceAll(expr, " ", "")
	if metric == "" {
		return Threshold{}, fmt.Errorf("threshold %q: metric name is required", expr)
	}

	var cmp string
	var idx int = -1
	for _, c := range comparators {
		if i := strings.Index(compact, c); i >= 0 {
			cmp = c
			idx = i
			break
		}
	}
	if idx < 0 {
		return Threshold{}, fmt.Errorf("threshold %s: %q has no comparator (< <= > >= ==)", metric, expr)
	}

	stat := compact[:idx]
	limitStr := compact[idx+len(cmp):]

	limit, err := strconv.ParseFloat(limitStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("threshold %s: limit %q is not a number", metric, limitStr)
	}

	t := Threshold{Metric: metric, Stat: stat, Cmp: cmp, Limit: limit}

	switch {
	case stat == "count" || stat == "rate" || stat == "avg" || stat == "min" || stat == "max":
	case strings.HasPrefix(stat, "p(") && strings.HasSuffix(stat, ")"):
		q, err := strconv.ParseFloat(stat[2:len(stat)-1], 64)
		if err != nil || q <= 0 || q > 100 {
			return Threshold{}, fmt.Errorf("threshold %s: bad percentile %q", metric, stat)
		}
		t.quantile = q
		t.isQuant = true
	default:
		return Threshold{}, fmt.Errorf("threshold %s: unknown statistic %q", metric, stat)
	}

	return t, nil
}

// String renders the threshold back in its configured form.
func (t Threshold) String() string {
	return fmt.Sprintf("%s: %s%s%g", t.Metric, t.Stat, t.Cmp, t.Limit)
}

// Evaluate computes every threshold against the snapshot. A threshold on
// a metric or statistic the snapshot cannot supply fails with actual=0,
// so a typo in a plan never silently passes.
func Evaluate(ths []Threshold, snap *metrics.Snapshot) Outcome {
	out := Outcome{Passed: true}
	for _, t := range ths {
		actual, ok := t.actual(snap)
		res := Result{Threshold: t, Actual: actual}
		res.Passed = ok && compare(actual, t.Cmp, t.Limit)
		if !res.Passed {
			out.Passed = false
		}
		out.Results = append(out.Results, res)
	}
	return out
}

func (t Threshold) actual(snap *metrics.Snapshot) (float64, bool) {
	if t.Stat == "count" {
		v, ok := snap.Counters[t.Metric]
		return float64(v), ok
	}
	if t.Stat == "rate" {
		r, ok := snap.Rates[t.Metric]
		return r.Value, ok
	}

	tr, ok := snap.Trends[t.Metric]
	if !ok {
		return 0, false
	}
	if t.isQuant {
		return tr.Percentile(t.quantile), true
	}
	switch t.Stat {
	case "avg":
		return tr.Avg, true
	case "min":
		return tr.Min, true
	case "max":
		return tr.Max, true
	}
	return 0, false
}

func compare(actual float64, cmp string, limit float64) bool {
	switch cmp {
	case "<":
		return actual < limit
	case "<=":
		return actual <= limit
	case ">":
		return actual > limit
	case ">=":
		return actual >= limit
	case "==":
		return actual == limit
	}
	return false
}
