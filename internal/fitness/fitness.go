// Package fitness scores a vehicle's progress on a track.
package fitness

import (
	"errors"
	"fmt"
	"math"

	"github.com/neatdrive/simulator/pkg/core"
)

// Caps of the individual reward terms.
const (
	MaxDistanceReward = 100.0
	MaxSpeedReward    = 20.0
	MaxGoalReward     = 20.0
	MaxMalus          = 10.0
	MaxProgressBonus  = 0.2
)

// State is the read-only view of a vehicle the reward needs.
type State interface {
	Center() core.Position2D
	Speed() float64
	DistanceTraveled() float64
	SpeedPenalty() float64
}

// Breakdown holds every term of a reward computation.
type Breakdown struct {
	Distance float64
	Speed    float64
	Goal     float64
	Malus    float64
	Progress float64
	Total    float64
}

// ErrZeroLength is returned for tracks without a positive length; every term
// is normalized by it.
var ErrZeroLength = errors.New("track length must be positive")

// Function is the reward function for one track.
type Function struct {
	Metrics core.TrackMetrics
}

// New creates a reward function for the given track metrics.
func New(metrics core.TrackMetrics) (*Function, error) {
	if !(metrics.Length > 0) || math.IsInf(metrics.Length, 1) {
		return nil, fmt.Errorf("%w: got %v", ErrZeroLength, metrics.Length)
	}
	return &Function{Metrics: metrics}, nil
}

// Score returns the fitness of s.
func (f *Function) Score(s State) float64 {
	return f.Breakdown(s).Total
}

// Breakdown computes all reward terms for s.
//
// The goal term is normalized by the full track length while the distance
// term uses half of it. Both scalings are kept as-is so scores stay
// comparable with existing training history.
func (f *Function) Breakdown(s State) Breakdown {
	length := f.Metrics.Length
	dist := s.DistanceTraveled()

	var b Breakdown
	b.Distance = math.Min(MaxDistanceReward, dist/(length/2)*MaxDistanceReward)
	b.Speed = math.Min(MaxSpeedReward, s.Speed()/(length/100)*MaxSpeedReward)

	marker := f.Metrics.Finish.Position
	c := s.Center()
	goalDist := math.Hypot(c.X-marker.X, c.Y-marker.Y)
	b.Goal = clamp(math.Max(0, 1-goalDist/length)*MaxGoalReward, 0, MaxGoalReward)

	b.Malus = math.Min(MaxMalus, s.SpeedPenalty()/(length/1000))
	b.Progress = 1 + NormalizeCap(length*0.75)(dist)*MaxProgressBonus

	b.Total = (b.Distance + b.Speed + b.Goal - b.Malus) * b.Progress
	return b
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
