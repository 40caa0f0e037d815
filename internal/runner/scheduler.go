package runner

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"loadpulse/internal/endpoint"
	"loadpulse/internal/metrics"
)

type scenarioState int

const (
	scenarioPending scenarioState = iota
	scenarioRunning
	scenarioCompleted
)

type scenarioRun struct {
	cfg     Scenario
	state   scenarioState
	pool    []*vu
	spawned int
}

// Scheduler owns every scenario's VU population. On each monotonic tick
// it computes the desired concurrency per scenario and reconciles the
// actual pool toward it: spawns are immediate but capped per tick
// (SpawnCapPerTick, to avoid a connection storm on steep ramps),
// retirements are graceful. When the global clock passes the latest
// scenario end, whatever is still running is hard-stopped.
type Scheduler struct {
	opts   Options
	client *http.Client
	sel    *endpoint.Selector
	ins    *instruments
	log    *zap.Logger

	seedRnd *rand.Rand // scheduler goroutine only
	active  atomic.Int64
	wg      sync.WaitGroup
}

func newScheduler(opts Options, reg *metrics.Registry, client *http.Client, sel *endpoint.Selector, log *zap.Logger) *Scheduler {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Scheduler{
		opts:    opts,
		client:  client,
		sel:     sel,
		ins:     newInstruments(reg),
		log:     log,
		seedRnd: rand.New(rand.NewSource(seed)),
	}
}

// ActiveVUs is the number of currently running virtual users.
func (s *Scheduler) ActiveVUs() int64 { return s.active.Load() }

// Run drives all scenarios to completion. It returns early only when
// ctx is cancelled from outside.
func (s *Scheduler) Run(ctx context.Context) error {
	runs := make([]*scenarioRun, len(s.opts.Scenarios))
	maxEnd := time.Duration(0)
	for i, sc := range s.opts.Scenarios {
		runs[i] = &scenarioRun{cfg: sc}
		if end := sc.StartOffset + sc.Length(); end > maxEnd {
			maxEnd = end
		}
	}

	hardCtx, hardStop := context.WithCancel(context.Background())
	defer hardStop()

	start := time.Now()
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hardStop()
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		}

		elapsed := time.Since(start)
		if elapsed >= maxEnd {
			s.log.Info("global test clock reached max end time, hard-stopping remaining VUs",
				zap.Duration("elapsed", elapsed))
			hardStop()
			break
		}

		allDone := true
		for _, run := range runs {
			s.tickScenario(hardCtx, run, elapsed)
			if run.state != scenarioCompleted {
				allDone = false
			}
		}
		if allDone {
			break
		}
	}

	// Graceful exits drain here; only a hard stop interrupts requests.
	s.wg.Wait()
	return nil
}

func (s *Scheduler) tickScenario(ctx context.Context, run *scenarioRun, elapsed time.Duration) {
	t := elapsed - run.cfg.StartOffset
	if t < 0 || run.state == scenarioCompleted {
		return
	}

	if run.state == scenarioPending {
		run.state = scenarioRunning
		s.log.Info("scenario started",
			zap.String("scenario", run.cfg.Name),
			zap.String("executor", run.cfg.Executor.String()))
	}

	desired, running := desiredVUs(run.cfg, t)
	if !running {
		s.retire(run, 0)
		run.state = scenarioCompleted
		s.log.Info("scenario completed",
			zap.String("scenario", run.cfg.Name),
			zap.Int("vus_spawned", run.spawned))
		return
	}

	cur := len(run.pool)
	switch {
	case cur < desired:
		n := spawnBudget(cur, desired, s.opts.SpawnCapPerTick)
		for i := 0; i < n; i++ {
			s.spawn(ctx, run)
		}
	case cur > desired:
		s.retire(run, desired)
	}
}

// desiredVUs computes a scenario's target concurrency at time t since
// its own start. The second return is false once the scenario is over.
func desiredVUs(sc Scenario, t time.Duration) (int, bool) {
	if sc.Executor == ConstantVUs {
		if t >= sc.Duration {
			return 0, false
		}
		return sc.VUs, true
	}

	from := 0
	var cum time.Duration
	for _, st := range sc.Stages {
		if t < cum+st.Duration {
			progress := float64(t-cum) / float64(st.Duration)
			return int(math.Round(float64(from) + float64(st.Target-from)*progress)), true
		}
		cum += st.Duration
		from = st.Target
	}
	return 0, false
}

// spawnBudget bounds how many VUs one tick may start.
func spawnBudget(current, desired, perTick int) int {
	n := desired - current
	if n <= 0 {
		return 0
	}
	if perTick > 0 && n > perTick {
		n = perTick
	}
	return n
}

func (s *Scheduler) spawn(ctx context.Context, run *scenarioRun) {
	u := &vu{
		id:       uuid.NewString(),
		scenario: run.cfg.Name,
		sel:      s.sel,
		rnd:      rand.New(rand.NewSource(s.seedRnd.Int63())),
		client:   s.client,
		ins:      s.ins,
		opts:     &s.opts,
		stop:     make(chan struct{}),
	}
	run.pool = append(run.pool, u)
	run.spawned++

	s.wg.Add(1)
	s.active.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.active.Add(-1)
		u.loop(ctx)
	}()
}

// retire gracefully stops every VU beyond keep: each finishes its
// current iteration, then exits.
func (s *Scheduler) retire(run *scenarioRun, keep int) {
	if keep >= len(run.pool) {
		return
	}
	for _, u := range run.pool[keep:] {
		close(u.stop)
	}
	run.pool = run.pool[:keep]
}
