// Package runner executes a test plan: it health-checks the target,
// schedules virtual-user populations per scenario, and hands back the
// frozen metrics snapshot when the test ends.
package runner

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"loadpulse/internal/endpoint"
	"loadpulse/internal/metrics"
)

type Runner struct {
	Opts     Options
	Registry *metrics.Registry
	Client   *http.Client

	// Updates receives periodic LiveSnapshots while the test runs.
	Updates Updates

	sel *endpoint.Selector
	log *zap.Logger
}

func New(opts Options, log *zap.Logger) (*Runner, error) {
	sel, err := endpoint.NewSelector(opts.Endpoints)
	if err != nil {
		return nil, err
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	return &Runner{
		Opts:     opts,
		Registry: metrics.NewRegistry(),
		// Per-request deadlines come from each iteration's context, so
		// the client itself carries no timeout.
		Client:  &http.Client{Transport: t},
		Updates: make(Updates, 100),
		sel:     sel,
		log:     log,
	}, nil
}

// TotalDuration is the latest scenario end across all scenarios.
func (r *Runner) TotalDuration() time.Duration {
	var max time.Duration
	for _, sc := range r.Opts.Scenarios {
		if end := sc.StartOffset + sc.Length(); end > max {
			max = end
		}
	}
	return max
}

// CheckTarget performs the health precondition: one GET against the
// health path. Anything but a 200 aborts the run before any VU starts.
func (r *Runner) CheckTarget(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, r.Opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, r.Opts.BaseURL+r.Opts.HealthPath, nil)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("target unreachable at %s%s: %w", r.Opts.BaseURL, r.Opts.HealthPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("target not ready: %s%s returned %d", r.Opts.BaseURL, r.Opts.HealthPath, resp.StatusCode)
	}
	return nil
}

// Run executes the whole test and returns the finalized snapshot. The
// snapshot is nil when the precondition fails: no metrics exist then.
func (r *Runner) Run(ctx context.Context) (*metrics.Snapshot, error) {
	if err := r.CheckTarget(ctx); err != nil {
		return nil, err
	}
	r.log.Info("target healthy, starting scenarios",
		zap.Int("scenarios", len(r.Opts.Scenarios)),
		zap.Duration("total", r.TotalDuration()))

	sched := newScheduler(r.Opts, r.Registry, r.Client, r.sel, r.log)

	start := time.Now()
	done := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		return sched.Run(gctx)
	})
	g.Go(func() error {
		r.publishLoop(gctx, done, sched, start)
		return nil
	})

	err := g.Wait()
	snap := r.Registry.Finalize()
	r.log.Info("run complete",
		zap.Int64("requests", snap.Counters[metrics.MetricRequests]),
		zap.Float64("error_rate", snap.ErrorRate()))
	return snap, err
}

// publishLoop pushes live stats to r.Updates every 200ms. Sends never
// block: a full channel drops the sample.
func (r *Runner) publishLoop(ctx context.Context, done <-chan struct{}, sched *Scheduler, start time.Time) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	total := r.TotalDuration()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			r.send(r.liveSnapshot(sched, start, total))
			return
		case <-ticker.C:
			r.send(r.liveSnapshot(sched, start, total))
		}
	}
}

func (r *Runner) liveSnapshot(sched *Scheduler, start time.Time, total time.Duration) LiveSnapshot {
	failed, _ := r.Registry.Rate(metrics.MetricFailed).Counts()
	dur := r.Registry.Trend(metrics.MetricDuration).Stats()

	return LiveSnapshot{
		Requests:  r.Registry.Counter(metrics.MetricRequests).Value(),
		Failed:    failed,
		ActiveVUs: sched.ActiveVUs(),
		ErrorRate: r.Registry.Rate(metrics.MetricFailed).Value(),
		AvgMs:     dur.Avg,
		P95Ms:     dur.P95,
		Elapsed:   time.Since(start),
		Total:     total,
	}
}

func (r *Runner) send(s LiveSnapshot) {
	select {
	case r.Updates <- s:
	default:
	}
}
