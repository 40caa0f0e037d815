// Package metrics accumulates measurements from many virtual users at
// once. Counters and rates are plain atomics; trends are sharded HDR
// histograms merged at read time, so concurrent writers never contend
// on a single lock. Finalize freezes everything into one immutable
// Snapshot; writes after finalization are discarded.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Names of the metrics every virtual-user iteration records.
const (
	MetricRequests     = "http_reqs"
	MetricDuration     = "http_req_duration"
	MetricFailed       = "http_req_failed"
	MetricChecks       = "checks"
	MetricIterations   = "iterations"
	MetricDataReceived = "data_received"

	// CheckPrefix namespaces the per-check rate metrics.
	CheckPrefix = "check:"
)

type Registry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	rates    map[string]*Rate
	trends   map[string]*Trend

	closed  atomic.Bool
	started time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*Counter),
		rates:    make(map[string]*Rate),
		trends:   make(map[string]*Trend),
		started:  time.Now(),
	}
}

// Counter returns the named counter, creating it on first use.
func (r *Registry) Counter(name string) *Counter {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[name]; ok {
		return c
	}
	c = &Counter{closed: &r.closed}
	r.counters[name] = c
	return c
}

func (r *Registry) Rate(name string) *Rate {
	r.mu.RLock()
	rt, ok := r.rates[name]
	r.mu.RUnlock()
	if ok {
		return rt
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok = r.rates[name]; ok {
		return rt
	}
	rt = &Rate{closed: &r.closed}
	r.rates[name] = rt
	return rt
}

func (r *Registry) Trend(name string) *Trend {
	r.mu.RLock()
	t, ok := r.trends[name]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok = r.trends[name]; ok {
		return t
	}
	t = newTrend(&r.closed)
	r.trends[name] = t
	return t
}

// Finalize closes the registry and returns the frozen snapshot.
// Subsequent writes are no-ops; subsequent calls return a fresh copy of
// the same frozen data.
func (r *Registry) Finalize() *Snapshot {
	r.closed.Store(true)

	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := &Snapshot{
		StartedAt: r.started,
		EndedAt:   time.Now(),
		Counters:  make(map[string]int64, len(r.counters)),
		Rates:     make(map[string]RateStats, len(r.rates)),
		Trends:    make(map[string]TrendStats, len(r.trends)),
	}
	snap.Duration = snap.EndedAt.Sub(snap.StartedAt)

	for name, c := range r.counters {
		snap.Counters[name] = c.Value()
	}
	for name, rt := range r.rates {
		snap.Rates[name] = rt.stats()
	}
	for name, t := range r.trends {
		snap.Trends[name] = t.Stats()
	}
	return snap
}

// CheckNames returns the recorded per-check metric names, sorted.
func (s *Snapshot) CheckNames() []string {
	var names []string
	for name := range s.Rates {
		if len(name) > len(CheckPrefix) && name[:len(CheckPrefix)] == CheckPrefix {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Counter is a monotonic sum.
type Counter struct {
	v      atomic.Int64
	closed *atomic.Bool
}

func (c *Counter) Add(n int64) {
	if n <= 0 || c.closed.Load() {
		return
	}
	c.v.Add(n)
}

func (c *Counter) Inc() { c.Add(1) }

func (c *Counter) Value() int64 { return c.v.Load() }

// Rate tracks the fraction of boolean samples that were true. The
// fraction is exact: trues/total, both kept as counts.
type Rate struct {
	trues  atomic.Int64
	total  atomic.Int64
	closed *atomic.Bool
}

func (r *Rate) Add(ok bool) {
	if r.closed.Load() {
		return
	}
	r.total.Add(1)
	if ok {
		r.trues.Add(1)
	}
}

func (r *Rate) Value() float64 {
	total := r.total.Load()
	if total == 0 {
		return 0
	}
	return float64(r.trues.Load()) / float64(total)
}

// Counts returns the raw true/total tallies.
func (r *Rate) Counts() (trues, total int64) {
	return r.trues.Load(), r.total.Load()
}

func (r *Rate) stats() RateStats {
	return RateStats{
		Trues: r.trues.Load(),
		Total: r.total.Load(),
		Value: r.Value(),
	}
}
