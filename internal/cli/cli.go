// Package cli drives one complete run: progress output, threshold
// evaluation, report artifacts, history, and the final verdict.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"loadpulse/internal/config"
	"loadpulse/internal/endpoint"
	"loadpulse/internal/live"
	"loadpulse/internal/metrics"
	"loadpulse/internal/report"
	"loadpulse/internal/runner"
	"loadpulse/internal/storage"
	"loadpulse/internal/threshold"
)

type runResult struct {
	snap *metrics.Snapshot
	err  error
}

// Run executes the plan and returns whether the verdict passed.
// liveView switches from the plain progress line to the dashboard.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger, liveView bool) (bool, error) {
	opts := buildOptions(cfg)
	r, err := runner.New(opts, log)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startedAt := time.Now()
	results := make(chan runResult, 1)
	go func() {
		snap, err := r.Run(ctx)
		results <- runResult{snap: snap, err: err}
	}()

	var res runResult
	if liveView {
		res = watchLive(cancel, r, results)
	} else {
		printHeader(cfg)
		res = watchConsole(r, results)
	}
	if res.err != nil {
		return false, res.err
	}

	outcome := threshold.Evaluate(cfg.ParsedThresholds(), res.snap)
	rep := report.New(buildMeta(cfg, startedAt, res.snap), res.snap, outcome)

	fmt.Println()
	fmt.Println(rep.Summary())

	if cfg.OutPrefix != "" {
		if err := rep.WriteJSON(cfg.OutPrefix + ".json"); err != nil {
			log.Warn("json report failed", zap.Error(err))
		}
		if err := rep.WriteHTML(cfg.OutPrefix + ".html"); err != nil {
			log.Warn("html report failed", zap.Error(err))
		}
		fmt.Printf("Reports written to %s.{json,html}\n", cfg.OutPrefix)
	}

	saveHistory(cfg, res.snap, outcome, startedAt, log)

	return outcome.Passed, nil
}

// watchConsole redraws a single-line progress bar in place until the
// run finishes.
func watchConsole(r *runner.Runner, results <-chan runResult) runResult {
	for {
		select {
		case res := <-results:
			fmt.Println()
			return res
		case s := <-r.Updates:
			pct := 0.0
			if s.Total > 0 {
				pct = float64(s.Elapsed) / float64(s.Total)
			}
			if pct > 1.0 {
				pct = 1.0
			}
			fmt.Printf("\r%s %3.0f%% | %s/%s | VUs: %3d | Reqs: %d | Err: %d",
				progressBar(pct, 20), pct*100,
				s.Elapsed.Round(time.Second), s.Total,
				s.ActiveVUs, s.Requests, s.Failed,
			)
		}
	}
}

// watchLive runs the bubbletea dashboard, forwarding runner updates in.
func watchLive(cancel context.CancelFunc, r *runner.Runner, results <-chan runResult) runResult {
	p := tea.NewProgram(live.NewModel(cancel))

	res := make(chan runResult, 1)
	go func() {
		for {
			select {
			case out := <-results:
				res <- out
				p.Send(live.DoneMsg{})
				return
			case s := <-r.Updates:
				p.Send(live.SnapshotMsg(s))
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
	}
	return <-res
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func printHeader(cfg *config.Config) {
	fmt.Printf("\nSTARTING LOADPULSE RUN\n")
	fmt.Printf("======================================================================\n")
	fmt.Printf("Target     : %s\n", cfg.BaseURL)
	fmt.Printf("Scenarios  : %d\n", len(cfg.Scenarios))
	fmt.Printf("Endpoints  : %d\n", len(cfg.Endpoints))
	fmt.Printf("Duration   : %s\n", cfg.TotalDuration())
	fmt.Printf("Timeout    : %s\n", cfg.Timeout)
	fmt.Printf("======================================================================\n\n")
}

func buildOptions(cfg *config.Config) runner.Options {
	opts := runner.Options{
		BaseURL:         cfg.BaseURL,
		HealthPath:      cfg.HealthPath,
		Timeout:         cfg.Timeout,
		ThinkMin:        cfg.ThinkMin,
		ThinkMax:        cfg.ThinkMax,
		TickInterval:    cfg.Scheduler.TickInterval,
		SpawnCapPerTick: cfg.Scheduler.SpawnCapPerTick,
	}
	for _, ep := range cfg.Endpoints {
		opts.Endpoints = append(opts.Endpoints, endpoint.Endpoint{Path: ep.Path, Weight: ep.Weight})
	}
	for _, sc := range cfg.Scenarios {
		kind := runner.ConstantVUs
		if sc.Executor == config.ExecutorRamping {
			kind = runner.RampingVUs
		}
		rsc := runner.Scenario{
			Name:        sc.Name,
			Executor:    kind,
			VUs:         sc.VUs,
			Duration:    sc.Duration,
			StartOffset: sc.StartOffset,
			Tags:        sc.Tags,
		}
		for _, st := range sc.Stages {
			rsc.Stages = append(rsc.Stages, runner.Stage{Duration: st.Duration, Target: st.Target})
		}
		opts.Scenarios = append(opts.Scenarios, rsc)
	}
	return opts
}

func buildMeta(cfg *config.Config, startedAt time.Time, snap *metrics.Snapshot) report.Meta {
	meta := report.Meta{
		Target:    cfg.BaseURL,
		StartedAt: startedAt,
		Duration:  snap.Duration,
	}
	for _, sc := range cfg.Scenarios {
		meta.Scenarios = append(meta.Scenarios, report.ScenarioMeta{
			Name:     sc.Name,
			Executor: sc.Executor,
			Tags:     sc.Tags,
		})
	}
	return meta
}

func saveHistory(cfg *config.Config, snap *metrics.Snapshot, outcome threshold.Outcome, startedAt time.Time, log *zap.Logger) {
	store, err := storage.Open()
	if err != nil {
		log.Warn("history store unavailable", zap.Error(err))
		return
	}
	defer store.Close()

	dur := snap.Trends[metrics.MetricDuration]
	rec := storage.RunRecord{
		ID:        uuid.NewString(),
		Timestamp: startedAt,
		Target:    cfg.BaseURL,
		Requests:  snap.Counters[metrics.MetricRequests],
		Failed:    snap.Rates[metrics.MetricFailed].Trues,
		ErrorRate: snap.ErrorRate(),
		AvgMs:     dur.Avg,
		P95Ms:     dur.P95,
		Passed:    outcome.Passed,
	}
	for _, sc := range cfg.Scenarios {
		rec.Scenarios = append(rec.Scenarios, sc.Name)
	}
	if err := store.Save(rec); err != nil {
		log.Warn("history save failed", zap.Error(err))
	}
}
