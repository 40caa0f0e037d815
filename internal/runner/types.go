package runner

import (
	"time"

	"loadpulse/internal/endpoint"
)

// ExecutorKind selects how a scenario's concurrency evolves.
type ExecutorKind int

const (
	ConstantVUs ExecutorKind = iota
	RampingVUs
)

func (k ExecutorKind) String() string {
	if k == RampingVUs {
		return "ramping-vus"
	}
	return "constant-vus"
}

// Options is everything the runner needs for one test, assembled from
// the validated plan.
type Options struct {
	BaseURL    string
	HealthPath string
	Timeout    time.Duration

	ThinkMin time.Duration
	ThinkMax time.Duration

	Endpoints []endpoint.Endpoint
	Scenarios []Scenario

	TickInterval    time.Duration
	SpawnCapPerTick int

	// Seed fixes the random streams (endpoint draws, think time) for
	// deterministic runs. Zero seeds from the clock.
	Seed int64
}

type Scenario struct {
	Name        string
	Executor    ExecutorKind
	VUs         int
	Duration    time.Duration
	Stages      []Stage
	StartOffset time.Duration
	Tags        map[string]string
}

type Stage struct {
	Duration time.Duration
	Target   int
}

// Length is the scenario's running time, start offset excluded.
func (s Scenario) Length() time.Duration {
	if s.Executor == ConstantVUs {
		return s.Duration
	}
	var sum time.Duration
	for _, st := range s.Stages {
		sum += st.Duration
	}
	return sum
}

// LiveSnapshot is the periodic stats sample pushed to the progress
// surfaces while the test runs.
type LiveSnapshot struct {
	Requests  int64
	Failed    int64
	ActiveVUs int64

	ErrorRate float64
	AvgMs     float64
	P95Ms     float64

	Elapsed time.Duration
	Total   time.Duration
}

// Updates carries LiveSnapshots; sends never block, slow consumers just
// miss samples.
type Updates chan LiveSnapshot
