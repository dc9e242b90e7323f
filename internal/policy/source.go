package policy

import (
	"math/rand"

	"github.com/neatdrive/simulator/internal/generation"
)

// DefaultSigma is the standard deviation of the mutation noise.
const DefaultSigma = 0.3

// Source produces controllers for consecutive generations by perturbing the
// best Linear policy seen so far. It stands in for an external optimizer
// when the simulator runs headless.
type Source struct {
	size  int
	sigma float64
	rng   *rand.Rand

	current     []*Linear
	best        *Linear
	bestFitness float64
}

// NewSource creates a source producing size controllers per generation.
func NewSource(size int, seed int64) *Source {
	return &Source{
		size:        size,
		sigma:       DefaultSigma,
		rng:         rand.New(rand.NewSource(seed)),
		bestFitness: -1,
	}
}

// Next returns the controllers of the next generation. prevFitness holds the
// fitness of the controllers returned by the previous call, in order; it is
// ignored on the first call.
func (s *Source) Next(prevFitness []float64) []generation.Controller {
	for i, f := range prevFitness {
		if i >= len(s.current) {
			break
		}
		if f > s.bestFitness {
			s.bestFitness = f
			s.best = s.current[i].Clone()
		}
	}

	s.current = make([]*Linear, s.size)
	for i := range s.current {
		switch {
		case s.best == nil:
			s.current[i] = RandomLinear(s.rng)
		case i == 0:
			s.current[i] = s.best.Clone()
		default:
			s.current[i] = s.mutate(s.best)
		}
	}

	out := make([]generation.Controller, s.size)
	for i, c := range s.current {
		out[i] = c
	}
	return out
}

// Best returns the best policy and its fitness, or nil before any feedback.
func (s *Source) Best() (*Linear, float64) {
	return s.best, s.bestFitness
}

func (s *Source) mutate(parent *Linear) *Linear {
	child := parent.Clone()
	for i := range child.Genome {
		child.Genome[i] += float32(s.rng.NormFloat64() * s.sigma)
	}
	return child
}
