// Package policy provides controllers that map sensor readings to action
// scores.
package policy

import (
	"math/rand"

	"github.com/neatdrive/simulator/internal/generation"
	"github.com/neatdrive/simulator/internal/vehicle"
)

const (
	inputs  = vehicle.SensorCount
	outputs = vehicle.ActionCount

	// GenomeSize is the number of weights plus biases of a Linear policy.
	GenomeSize = inputs*outputs + outputs

	// inputScale brings pixel distances near the unit range.
	inputScale = 1.0 / 100
)

var (
	_ generation.Controller = (*Linear)(nil)
	_ generation.Controller = Func(nil)
)

// Func adapts a plain function to generation.Controller.
type Func func(inputs []float32) []float32

func (f Func) Evaluate(in []float32) []float32 { return f(in) }

// Linear is a single-layer policy. Genome holds the weight matrix row by row
// (one row per action) followed by one bias per action.
type Linear struct {
	Genome []float32
}

// NewLinear creates a Linear policy from genome, which must have GenomeSize
// elements.
func NewLinear(genome []float32) *Linear {
	if len(genome) != GenomeSize {
		panic("policy: genome size mismatch")
	}
	return &Linear{Genome: genome}
}

// RandomLinear creates a Linear policy with weights uniform in [-1, 1).
func RandomLinear(rng *rand.Rand) *Linear {
	g := make([]float32, GenomeSize)
	for i := range g {
		g[i] = rng.Float32()*2 - 1
	}
	return &Linear{Genome: g}
}

// Evaluate returns one score per action.
func (l *Linear) Evaluate(in []float32) []float32 {
	out := make([]float32, outputs)
	for a := 0; a < outputs; a++ {
		sum := l.Genome[inputs*outputs+a]
		row := l.Genome[a*inputs : (a+1)*inputs]
		for i := 0; i < inputs && i < len(in); i++ {
			sum += row[i] * in[i] * inputScale
		}
		out[a] = sum
	}
	return out
}

// Clone returns a deep copy.
func (l *Linear) Clone() *Linear {
	g := make([]float32, len(l.Genome))
	copy(g, l.Genome)
	return &Linear{Genome: g}
}
