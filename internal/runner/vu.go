package runner

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"time"

	"loadpulse/internal/endpoint"
	"loadpulse/internal/metrics"
)

const userAgent = "loadpulse/0.3.0"

// Names of the fixed check battery every iteration runs.
const (
	checkStatus200    = "status is 200"
	checkUnder500ms   = "duration < 500ms"
	checkUnder1000ms  = "duration < 1000ms"
	checkBodyNotEmpty = "body not empty"
	checkBodyJSON     = "body is valid json"
)

// instruments caches the metric handles once so the hot loop never
// touches the registry's map.
type instruments struct {
	requests   *metrics.Counter
	duration   *metrics.Trend
	failed     *metrics.Rate
	checks     *metrics.Rate
	iterations *metrics.Counter
	data       *metrics.Counter
	perCheck   map[string]*metrics.Rate
}

func newInstruments(reg *metrics.Registry) *instruments {
	ins := &instruments{
		requests:   reg.Counter(metrics.MetricRequests),
		duration:   reg.Trend(metrics.MetricDuration),
		failed:     reg.Rate(metrics.MetricFailed),
		checks:     reg.Rate(metrics.MetricChecks),
		iterations: reg.Counter(metrics.MetricIterations),
		data:       reg.Counter(metrics.MetricDataReceived),
		perCheck:   make(map[string]*metrics.Rate),
	}
	for _, name := range []string{
		checkStatus200, checkUnder500ms, checkUnder1000ms,
		checkBodyNotEmpty, checkBodyJSON,
	} {
		ins.perCheck[name] = reg.Rate(metrics.CheckPrefix + name)
	}
	return ins
}

// vu is one virtual user: a strictly sequential
// select/request/check/think loop. Closing stop retires it gracefully
// at the next iteration boundary; cancelling ctx aborts the in-flight
// request (global test end only).
type vu struct {
	id       string
	scenario string

	sel    *endpoint.Selector
	rnd    *rand.Rand
	client *http.Client
	ins    *instruments
	opts   *Options

	stop chan struct{}
}

func (u *vu) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-u.stop:
			return
		default:
		}

		u.iteration(ctx)

		if !u.think(ctx) {
			return
		}
	}
}

// iteration runs one request cycle. Failures of any kind are recorded
// as data; nothing here ever terminates the loop.
func (u *vu) iteration(ctx context.Context) {
	ep := u.sel.Pick(u.rnd)

	reqCtx, cancel := context.WithTimeout(ctx, u.opts.Timeout)
	defer cancel()

	var (
		status int
		body   []byte
		reqErr error
	)

	start := time.Now()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.opts.BaseURL+ep.Path, nil)
	if err != nil {
		reqErr = err
	} else {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := u.client.Do(req)
		if err != nil {
			reqErr = err
		} else {
			status = resp.StatusCode
			body, _ = io.ReadAll(resp.Body)
			resp.Body.Close()
		}
	}
	dur := time.Since(start)

	// Hard stop: the request was abandoned at the global test end, so
	// its partial sample is dropped rather than recorded.
	if ctx.Err() != nil {
		return
	}

	failed := reqErr != nil || status != http.StatusOK

	u.ins.requests.Inc()
	u.ins.duration.RecordDuration(dur)
	u.ins.failed.Add(failed)
	u.ins.data.Add(int64(len(body)))

	u.check(checkStatus200, status == http.StatusOK)
	u.check(checkUnder500ms, dur < 500*time.Millisecond)
	u.check(checkUnder1000ms, dur < 1000*time.Millisecond)
	u.check(checkBodyNotEmpty, len(body) > 0)
	u.check(checkBodyJSON, len(body) > 0 && json.Valid(body))

	u.ins.iterations.Inc()
}

func (u *vu) check(name string, ok bool) {
	u.ins.checks.Add(ok)
	u.ins.perCheck[name].Add(ok)
}

// think sleeps for a uniformly drawn pause between iterations. Returns
// false when the VU should exit instead of starting another iteration.
func (u *vu) think(ctx context.Context) bool {
	d := u.opts.ThinkMin
	if span := u.opts.ThinkMax - u.opts.ThinkMin; span > 0 {
		d += time.Duration(u.rnd.Int63n(int64(span) + 1))
	}
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-u.stop:
		return false
	case <-ctx.Done():
		return false
	}
}
