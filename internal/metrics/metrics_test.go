package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterMonotonic(t *testing.T) {
	reg := NewRegistry()
	c := reg.Counter("reqs")

	c.Add(5)
	c.Inc()
	c.Add(-3) // ignored: counters only go up
	c.Add(0)

	assert.Equal(t, int64(6), c.Value())
}

func TestRateExactFraction(t *testing.T) {
	reg := NewRegistry()
	r := reg.Rate("failed")

	for i := 0; i < 7; i++ {
		r.Add(true)
	}
	for i := 0; i < 3; i++ {
		r.Add(false)
	}

	assert.Equal(t, 0.7, r.Value(), "rate must equal trues/total exactly")

	trues, total := r.Counts()
	assert.Equal(t, int64(7), trues)
	assert.Equal(t, int64(10), total)
}

func TestRateEmpty(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, 0.0, reg.Rate("empty").Value())
}

func TestTrendPercentileNearestRank(t *testing.T) {
	reg := NewRegistry()
	tr := reg.Trend("duration")

	for v := int64(1); v <= 100; v++ {
		tr.Record(v)
	}

	st := tr.Stats()
	assert.Equal(t, int64(100), st.Count)
	assert.Equal(t, 95.0, st.Percentile(95), "p95 of 1..100 is 95 under nearest-rank")
	assert.Equal(t, 50.0, st.Percentile(50))
	assert.Equal(t, 100.0, st.Percentile(100))
	assert.Equal(t, 1.0, st.Min)
	assert.Equal(t, 100.0, st.Max)
	assert.InDelta(t, 50.5, st.Avg, 0.1)
}

func TestTrendEmpty(t *testing.T) {
	reg := NewRegistry()
	st := reg.Trend("empty").Stats()

	assert.Equal(t, int64(0), st.Count)
	assert.Equal(t, 0.0, st.Avg)
	assert.Equal(t, 0.0, st.Percentile(95))
}

func TestTrendClampsOutOfRange(t *testing.T) {
	reg := NewRegistry()
	tr := reg.Trend("clamped")

	tr.Record(-50)
	tr.Record(trendMax + 1000)

	st := tr.Stats()
	assert.Equal(t, int64(2), st.Count)
	assert.GreaterOrEqual(t, st.Min, 0.0)
	// HDR stores large values at reduced precision; stay within it.
	assert.InEpsilon(t, float64(trendMax), st.Max, 0.001)
}

func TestRegistryReturnsSameInstrument(t *testing.T) {
	reg := NewRegistry()
	assert.Same(t, reg.Counter("a"), reg.Counter("a"))
	assert.Same(t, reg.Rate("b"), reg.Rate("b"))
	assert.Same(t, reg.Trend("c"), reg.Trend("c"))
}

func TestConcurrentWrites(t *testing.T) {
	reg := NewRegistry()
	c := reg.Counter("hits")
	r := reg.Rate("flips")
	tr := reg.Trend("vals")

	const workers = 16
	const perWorker = 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.Inc()
				r.Add(i%2 == 0)
				tr.Record(int64(i + 1))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers*perWorker), c.Value())
	assert.Equal(t, 0.5, r.Value())
	assert.Equal(t, int64(workers*perWorker), tr.Stats().Count)
}

func TestFinalizeFreezesSnapshot(t *testing.T) {
	reg := NewRegistry()
	reg.Counter("reqs").Add(10)
	reg.Rate("failed").Add(true)
	reg.Trend("dur").Record(42)

	snap := reg.Finalize()
	require.NotNil(t, snap)
	assert.Equal(t, int64(10), snap.Counters["reqs"])
	assert.Equal(t, 1.0, snap.Rates["failed"].Value)
	assert.Equal(t, int64(1), snap.Trends["dur"].Count)

	// Writes after finalization are dropped.
	reg.Counter("reqs").Add(99)
	reg.Rate("failed").Add(false)
	reg.Trend("dur").Record(7)

	again := reg.Finalize()
	assert.Equal(t, int64(10), again.Counters["reqs"])
	assert.Equal(t, int64(1), again.Rates["failed"].Total)
	assert.Equal(t, int64(1), again.Trends["dur"].Count)
}

func TestSnapshotDerivedStats(t *testing.T) {
	reg := NewRegistry()
	reg.Counter(MetricRequests).Add(100)
	reg.Rate(MetricFailed).Add(true)
	reg.Rate(MetricFailed).Add(false)
	reg.Rate(MetricFailed).Add(false)
	reg.Rate(MetricFailed).Add(false)

	snap := reg.Finalize()
	assert.Equal(t, 0.25, snap.ErrorRate())
	assert.Greater(t, snap.RequestRate(), 0.0)
}

func TestCheckNames(t *testing.T) {
	reg := NewRegistry()
	reg.Rate(CheckPrefix + "status is 200").Add(true)
	reg.Rate(CheckPrefix + "body not empty").Add(true)
	reg.Rate("checks").Add(true)

	snap := reg.Finalize()
	assert.Equal(t,
		[]string{CheckPrefix + "body not empty", CheckPrefix + "status is 200"},
		snap.CheckNames())
}
