package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loadpulse/internal/endpoint"
	"loadpulse/internal/metrics"
	"loadpulse/internal/threshold"
)

// okTarget serves a healthy /health and 200 {"status":"ok"} everywhere
// else after the given latency.
func okTarget(latency time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			time.Sleep(latency)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
}

func testOptions(baseURL string, scenarios ...Scenario) Options {
	return Options{
		BaseURL:         baseURL,
		HealthPath:      "/health",
		Timeout:         5 * time.Second,
		Endpoints:       []endpoint.Endpoint{{Path: "/api", Weight: 1}},
		Scenarios:       scenarios,
		TickInterval:    50 * time.Millisecond,
		SpawnCapPerTick: 50,
		Seed:            1,
	}
}

func TestRunConstantScenario(t *testing.T) {
	srv := okTarget(50 * time.Millisecond)
	defer srv.Close()

	opts := testOptions(srv.URL, Scenario{
		Name:     "steady",
		Executor: ConstantVUs,
		VUs:      10,
		Duration: 700 * time.Millisecond,
	})

	r, err := New(opts, zap.NewNop())
	require.NoError(t, err)

	snap, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Greater(t, snap.Counters[metrics.MetricRequests], int64(10))
	assert.Equal(t, 0.0, snap.ErrorRate(), "a healthy target yields no failures")

	dur := snap.Trends[metrics.MetricDuration]
	assert.InDelta(t, 50, dur.Avg, 40, "average latency tracks the target's fixed delay")

	checks := snap.Rates[metrics.MetricChecks]
	assert.Equal(t, 1.0, checks.Value, "every check passes against a well-behaved target")
	assert.Equal(t, snap.Counters[metrics.MetricRequests], snap.Counters[metrics.MetricIterations])
	assert.Greater(t, snap.Counters[metrics.MetricDataReceived], int64(0))
}

func TestRunRampingScenario(t *testing.T) {
	srv := okTarget(10 * time.Millisecond)
	defer srv.Close()

	opts := testOptions(srv.URL, Scenario{
		Name:     "ramp",
		Executor: RampingVUs,
		Stages: []Stage{
			{Duration: 300 * time.Millisecond, Target: 8},
			{Duration: 300 * time.Millisecond, Target: 0},
		},
	})

	r, err := New(opts, zap.NewNop())
	require.NoError(t, err)

	snap, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, snap.Counters[metrics.MetricRequests], int64(0))
	assert.Equal(t, 0.0, snap.ErrorRate())
}

func TestRunOverlappingScenarios(t *testing.T) {
	srv := okTarget(5 * time.Millisecond)
	defer srv.Close()

	opts := testOptions(srv.URL,
		Scenario{Name: "first", Executor: ConstantVUs, VUs: 2, Duration: 400 * time.Millisecond},
		Scenario{Name: "second", Executor: ConstantVUs, VUs: 2, Duration: 200 * time.Millisecond,
			StartOffset: 200 * time.Millisecond},
	)

	r, err := New(opts, zap.NewNop())
	require.NoError(t, err)

	start := time.Now()
	snap, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Greater(t, snap.Counters[metrics.MetricRequests], int64(0))
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, 400*time.Millisecond, r.TotalDuration())
}

func TestPreconditionFailureAbortsRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	opts := testOptions(srv.URL, constantScenario(5, time.Second))

	r, err := New(opts, zap.NewNop())
	require.NoError(t, err)

	snap, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap, "no metrics exist when the precondition fails")
	assert.Equal(t, int64(0), r.Registry.Counter(metrics.MetricRequests).Value())
}

func TestPreconditionUnreachableTarget(t *testing.T) {
	opts := testOptions("http://127.0.0.1:1", constantScenario(2, time.Second))
	opts.Timeout = 500 * time.Millisecond

	r, err := New(opts, zap.NewNop())
	require.NoError(t, err)

	snap, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap)
}

func TestFailuresAreRecordedNotEscalated(t *testing.T) {
	var n atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
			return
		}
		// Every other request fails; the VU loops must keep going.
		n.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	opts := testOptions(srv.URL, constantScenario(4, 400*time.Millisecond))

	r, err := New(opts, zap.NewNop())
	require.NoError(t, err)

	snap, err := r.Run(context.Background())
	require.NoError(t, err, "request failures never abort the run")

	assert.Equal(t, 1.0, snap.ErrorRate())
	assert.Greater(t, snap.Counters[metrics.MetricRequests], int64(4),
		"loops keep iterating after failures")
	statusCheck := snap.Rates[metrics.CheckPrefix+checkStatus200]
	assert.Equal(t, 0.0, statusCheck.Value)
}

func TestHardStopAtGlobalEnd(t *testing.T) {
	// The target hangs far longer than the test; the global clock must
	// cut the run off and the abandoned requests must leave no samples.
	srv := okTarget(10 * time.Second)
	defer srv.Close()

	opts := testOptions(srv.URL, constantScenario(3, 300*time.Millisecond))
	opts.Timeout = 30 * time.Second

	r, err := New(opts, zap.NewNop())
	require.NoError(t, err)

	start := time.Now()
	snap, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 3*time.Second, "run ends at the global clock, not the target's pace")
	assert.Equal(t, int64(0), snap.Counters[metrics.MetricRequests],
		"abandoned in-flight requests record no partial samples")
}

func TestExternalCancel(t *testing.T) {
	srv := okTarget(10 * time.Millisecond)
	defer srv.Close()

	opts := testOptions(srv.URL, constantScenario(2, 10*time.Second))

	r, err := New(opts, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err = r.Run(ctx)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// End to end: a well-behaved mock target under a constant scenario
// produces a clean snapshot that passes typical CI thresholds.
func TestEndToEndPassingVerdict(t *testing.T) {
	srv := okTarget(50 * time.Millisecond)
	defer srv.Close()

	opts := testOptions(srv.URL, Scenario{
		Name:     "steady",
		Executor: ConstantVUs,
		VUs:      10,
		Duration: 600 * time.Millisecond,
	})

	r, err := New(opts, zap.NewNop())
	require.NoError(t, err)

	snap, err := r.Run(context.Background())
	require.NoError(t, err)

	p95, err2 := threshold.Parse(metrics.MetricDuration, "p(95)<500")
	require.NoError(t, err2)
	failed, err2 := threshold.Parse(metrics.MetricFailed, "rate<0.05")
	require.NoError(t, err2)

	out := threshold.Evaluate([]threshold.Threshold{p95, failed}, snap)
	assert.True(t, out.Passed)
	for _, res := range out.Results {
		assert.True(t, res.Passed, res.Threshold.String())
	}
}
