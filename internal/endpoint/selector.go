// Package endpoint picks request targets by weighted random choice.
package endpoint

import (
	"fmt"
	"math/rand"
)

type Endpoint struct {
	Path   string
	Weight float64
}

// Selector picks an endpoint proportionally to its weight. Selection is
// a pure function of the configured set and a uniform draw, so callers
// inject their own rand source for deterministic runs.
type Selector struct {
	endpoints []Endpoint
	total     float64
}

// NewSelector validates the set once: weights must be non-negative and
// sum to a positive total.
func NewSelector(endpoints []Endpoint) (*Selector, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints configured")
	}
	total := 0.0
	for _, ep := range endpoints {
		if ep.Weight < 0 {
			return nil, fmt.Errorf("endpoint %s: negative weight %g", ep.Path, ep.Weight)
		}
		total += ep.Weight
	}
	if total <= 0 {
		return nil, fmt.Errorf("total endpoint weight must be positive, got %g", total)
	}
	return &Selector{endpoints: endpoints, total: total}, nil
}

// Pick draws uniformly in [0, totalWeight) from r and returns the
// endpoint whose cumulative weight range contains the draw.
func (s *Selector) Pick(r *rand.Rand) Endpoint {
	return s.pickAt(r.Float64() * s.total)
}

// pickAt walks cumulative weights in configuration order. If
// floating-point rounding pushes the draw past every range, the first
// configured endpoint is returned. That fallback is a deliberate,
// tested rule, not an accident.
func (s *Selector) pickAt(draw float64) Endpoint {
	cum := 0.0
	for _, ep := range s.endpoints {
		cum += ep.Weight
		if draw < cum {
			return ep
		}
	}
	return s.endpoints[0]
}
