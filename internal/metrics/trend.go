package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const trendShards = 8

// trendMax bounds trackable values: 10 minutes in milliseconds, which
// also comfortably covers raw numeric samples used in thresholds.
var trendMax = int64(10 * time.Minute / time.Millisecond)

// Trend holds a distribution of int64 samples. Writers spread across a
// fixed set of independently locked histograms picked round-robin; the
// shards are merged only when a snapshot is taken.
type Trend struct {
	shards [trendShards]trendShard
	next   atomic.Uint64
	closed *atomic.Bool
}

type trendShard struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
	_    [32]byte // keep neighboring shard locks off one cache line
}

func newTrend(closed *atomic.Bool) *Trend {
	t := &Trend{closed: closed}
	for i := range t.shards {
		t.shards[i].hist = hdrhistogram.New(1, trendMax, 3)
	}
	return t
}

// Record adds one sample. Values are clamped into the trackable range.
func (t *Trend) Record(v int64) {
	if t.closed.Load() {
		return
	}
	if v < 0 {
		v = 0
	}
	if v > trendMax {
		v = trendMax
	}

	s := &t.shards[t.next.Add(1)%trendShards]
	s.mu.Lock()
	s.hist.RecordValue(v)
	s.mu.Unlock()
}

// RecordDuration adds a duration at millisecond resolution.
func (t *Trend) RecordDuration(d time.Duration) {
	t.Record(d.Milliseconds())
}

// Stats merges the shards into one frozen histogram. Safe to call
// mid-run for live reporting; writers only block for their own shard.
func (t *Trend) Stats() TrendStats {
	merged := hdrhistogram.New(1, trendMax, 3)
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		merged.Merge(s.hist)
		s.mu.Unlock()
	}

	st := TrendStats{Count: merged.TotalCount(), hist: merged}
	if st.Count > 0 {
		st.Avg = merged.Mean()
		st.Min = float64(merged.Min())
		st.Max = float64(merged.Max())
		st.P50 = st.Percentile(50)
		st.P90 = st.Percentile(90)
		st.P95 = st.Percentile(95)
		st.P99 = st.Percentile(99)
	}
	return st
}
