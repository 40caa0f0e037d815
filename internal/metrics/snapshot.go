package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Snapshot is the frozen end-of-run view of every metric. It is the
// only input to threshold evaluation and report rendering.
type Snapshot struct {
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration_ns"`

	Counters map[string]int64      `json:"counters"`
	Rates    map[string]RateStats  `json:"rates"`
	Trends   map[string]TrendStats `json:"trends"`
}

type RateStats struct {
	Trues int64   `json:"trues"`
	Total int64   `json:"total"`
	Value float64 `json:"value"`
}

// TrendStats summarizes a trend's distribution. Percentiles follow the
// HDR-histogram nearest-rank rule: the value whose cumulative count
// first reaches ceil(q/100 * n). The common quantiles are materialized
// for serialization; Percentile answers arbitrary ones.
type TrendStats struct {
	Count int64   `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`

	hist *hdrhistogram.Histogram
}

// Percentile returns the q-th percentile (0 < q <= 100) of the frozen
// distribution, 0 when the trend holds no samples.
func (t TrendStats) Percentile(q float64) float64 {
	if t.hist == nil || t.Count == 0 {
		return 0
	}
	return float64(t.hist.ValueAtQuantile(q))
}

// RequestRate is throughput over the run in requests per second.
func (s *Snapshot) RequestRate() float64 {
	secs := s.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Counters[MetricRequests]) / secs
}

// ErrorRate is the recorded request failure fraction, 0..1.
func (s *Snapshot) ErrorRate() float64 {
	return s.Rates[MetricFailed].Value
}
