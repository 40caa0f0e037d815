package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func constantScenario(vus int, d time.Duration) Scenario {
	return Scenario{Name: "const", Executor: ConstantVUs, VUs: vus, Duration: d}
}

func TestDesiredVUsConstant(t *testing.T) {
	sc := constantScenario(10, 10*time.Second)

	for _, tt := range []time.Duration{0, time.Second, 9 * time.Second} {
		n, running := desiredVUs(sc, tt)
		assert.True(t, running)
		assert.Equal(t, 10, n)
	}

	n, running := desiredVUs(sc, 10*time.Second)
	assert.False(t, running)
	assert.Equal(t, 0, n)
}

func TestDesiredVUsRampMidpoint(t *testing.T) {
	sc := Scenario{
		Name:     "ramp",
		Executor: RampingVUs,
		Stages:   []Stage{{Duration: 10 * time.Second, Target: 100}},
	}

	n, running := desiredVUs(sc, 5*time.Second)
	assert.True(t, running)
	assert.Equal(t, 50, n, "halfway through a 0->100 ramp the target is 50")

	n, _ = desiredVUs(sc, 0)
	assert.Equal(t, 0, n)

	n, _ = desiredVUs(sc, 9999*time.Millisecond)
	assert.InDelta(t, 100, n, 1)
}

func TestDesiredVUsHoldStage(t *testing.T) {
	sc := Scenario{
		Executor: RampingVUs,
		Stages: []Stage{
			{Duration: 2 * time.Second, Target: 20},
			{Duration: 4 * time.Second, Target: 20}, // hold
			{Duration: 2 * time.Second, Target: 0},  // ramp down
		},
	}

	n, running := desiredVUs(sc, 3*time.Second)
	assert.True(t, running)
	assert.Equal(t, 20, n, "equal targets hold concurrency flat")

	n, _ = desiredVUs(sc, 7*time.Second)
	assert.Equal(t, 10, n, "halfway down the final ramp")

	_, running = desiredVUs(sc, 8*time.Second)
	assert.False(t, running, "scenario is over once stages are exhausted")
}

func TestDesiredVUsMultiStageInterpolation(t *testing.T) {
	sc := Scenario{
		Executor: RampingVUs,
		Stages: []Stage{
			{Duration: 4 * time.Second, Target: 40},
			{Duration: 4 * time.Second, Target: 80},
		},
	}

	n, _ := desiredVUs(sc, 2*time.Second)
	assert.Equal(t, 20, n)

	// Second stage interpolates from the previous target, not from 0.
	n, _ = desiredVUs(sc, 6*time.Second)
	assert.Equal(t, 60, n)
}

func TestSpawnBudget(t *testing.T) {
	assert.Equal(t, 0, spawnBudget(10, 10, 50))
	assert.Equal(t, 0, spawnBudget(15, 10, 50))
	assert.Equal(t, 5, spawnBudget(5, 10, 50))
	assert.Equal(t, 50, spawnBudget(0, 1000, 50), "steep ramps are capped per tick")
	assert.Equal(t, 1000, spawnBudget(0, 1000, 0), "zero cap means uncapped")
}

func TestScenarioLength(t *testing.T) {
	assert.Equal(t, 10*time.Second, constantScenario(5, 10*time.Second).Length())

	sc := Scenario{
		Executor: RampingVUs,
		Stages: []Stage{
			{Duration: 2 * time.Second, Target: 10},
			{Duration: 3 * time.Second, Target: 0},
		},
	}
	assert.Equal(t, 5*time.Second, sc.Length())
}
