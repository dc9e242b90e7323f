// Package generation steps a population of vehicles in lockstep and decides
// when a generation is over.
package generation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/iter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/neatdrive/simulator/internal/vehicle"
	"github.com/neatdrive/simulator/pkg/core"
)

// DefaultTimeLimit is the wall-clock budget of one generation.
const DefaultTimeLimit = 60 * time.Second

// ErrNoAgents is returned when a generation is created without controllers.
var ErrNoAgents = errors.New("generation has no agents")

// Controller maps sensor readings to one score per action.
type Controller interface {
	Evaluate(inputs []float32) []float32
}

// Config holds per-generation settings.
type Config struct {
	RunID     uint
	Index     int
	TimeLimit time.Duration
	// MaxTicks stops the generation after this many ticks. 0 means unbounded.
	MaxTicks int
	// Parallel steps vehicle physics concurrently.
	Parallel bool
	// Clock is used for the start time. Defaults to time.Now.
	Clock func() time.Time
	// SensorRange caps sensor rays. 0 keeps vehicle.DefaultSensorRange.
	SensorRange float64
	// Meter records the tick, crash and finish counters. Defaults to the
	// global meter provider.
	Meter metric.Meter
}

type state int

const (
	running state = iota
	finished
)

// Generation owns the vehicles of one evaluation round. Tick, StepAll and
// Evaluate must be called from a single goroutine; Stop may be called from
// any goroutine.
type Generation struct {
	cfg         Config
	vehicles    []*vehicle.Vehicle
	controllers []Controller

	fitness     []float64
	bestFitness float64
	leader      int

	crashed []bool
	arrived []bool

	start      time.Time
	end        time.Time
	ticks      int
	state      state
	stopReason core.StopReason
	stop       atomic.Bool

	inputs []float32

	tickCounter   metric.Int64Counter
	crashCounter  metric.Int64Counter
	finishCounter metric.Int64Counter
	attrs         metric.MeasurementOption
}

// New spawns one vehicle per controller at the spawn pose.
func New(cfg Config, controllers []Controller, spawn core.Pose, scorer vehicle.Scorer) (*Generation, error) {
	if len(controllers) == 0 {
		return nil, ErrNoAgents
	}
	if cfg.TimeLimit <= 0 {
		cfg.TimeLimit = DefaultTimeLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	g := &Generation{
		cfg:         cfg,
		vehicles:    make([]*vehicle.Vehicle, len(controllers)),
		controllers: controllers,
		fitness:     make([]float64, len(controllers)),
		crashed:     make([]bool, len(controllers)),
		arrived:     make([]bool, len(controllers)),
		leader:      -1,
		start:       cfg.Clock(),
		inputs:      make([]float32, vehicle.SensorCount),
		attrs:       metric.WithAttributes(attribute.Int("generation", cfg.Index)),
	}
	opts := []vehicle.Option{vehicle.WithScorer(scorer)}
	if cfg.SensorRange > 0 {
		opts = append(opts, vehicle.WithSensorRange(cfg.SensorRange))
	}
	for i := range controllers {
		g.vehicles[i] = vehicle.New(spawn, opts...)
	}

	m := cfg.Meter
	if m == nil {
		m = meter()
	}
	var err error
	g.tickCounter, err = m.Int64Counter(
		"generation.ticks",
		metric.WithDescription("Total simulation ticks"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}
	g.crashCounter, err = m.Int64Counter(
		"generation.crashes",
		metric.WithDescription("Total vehicles crashed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating crash counter: %w", err)
	}
	g.finishCounter, err = m.Int64Counter(
		"generation.finishes",
		metric.WithDescription("Total vehicles that reached the finish"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating finish counter: %w", err)
	}

	return g, nil
}

// Tick runs every active vehicle's controller and applies the chosen action.
func (g *Generation) Tick() {
	if g.state == finished {
		panic("generation: Tick called after Finish")
	}

	for i, v := range g.vehicles {
		if !v.Active() {
			continue
		}
		sensors := v.SensorVector()
		for j, s := range sensors {
			g.inputs[j] = float32(s)
		}
		out := g.controllers[i].Evaluate(g.inputs)
		if len(out) != vehicle.ActionCount {
			panic(fmt.Sprintf("generation: controller %d returned %d outputs, want %d", i, len(out), vehicle.ActionCount))
		}
		v.ApplyAction(vehicle.Action(argmax(out)))
	}

	g.ticks++
	g.tickCounter.Add(context.Background(), 1, g.attrs)
}

// StepAll advances every vehicle's physics and checks the finish marker.
// All vehicles have moved when it returns.
func (g *Generation) StepAll(surface vehicle.Surface, marker core.FinishMarker) {
	step := func(v **vehicle.Vehicle) {
		(*v).Step(surface)
		(*v).CheckFinish(marker)
	}
	if g.cfg.Parallel {
		iter.ForEach(g.vehicles, step)
	} else {
		for i := range g.vehicles {
			step(&g.vehicles[i])
		}
	}

	ctx := context.Background()
	for i, v := range g.vehicles {
		if !v.Alive() && !g.crashed[i] {
			g.crashed[i] = true
			g.crashCounter.Add(ctx, 1, g.attrs)
		}
		if v.Finished() && !g.arrived[i] {
			g.arrived[i] = true
			g.finishCounter.Add(ctx, 1, g.attrs)
		}
	}
}

// Evaluate refreshes the fitness of every alive vehicle, raises the best
// fitness and picks the leader among vehicles still driving. The first of
// equally scored vehicles wins. It returns the leader index or -1.
func (g *Generation) Evaluate() int {
	g.leader = -1
	leaderFitness := 0.0
	for i, v := range g.vehicles {
		if !v.Alive() {
			continue
		}
		g.fitness[i] = v.Reward()
		if g.fitness[i] > g.bestFitness {
			g.bestFitness = g.fitness[i]
		}
		if v.Finished() {
			continue
		}
		if g.leader < 0 || g.fitness[i] > leaderFitness {
			g.leader = i
			leaderFitness = g.fitness[i]
		}
	}
	return g.leader
}

// ShouldStop reports whether the generation is over and why.
func (g *Generation) ShouldStop(now time.Time) (core.StopReason, bool) {
	if g.stop.Load() {
		return core.StopAborted, true
	}
	alive, done := g.AliveCount(), g.FinishedCount()
	switch {
	case alive == 0:
		return core.StopAllCrashed, true
	case alive == done:
		return core.StopAllFinished, true
	case now.Sub(g.start) > g.cfg.TimeLimit:
		return core.StopTimeLimit, true
	case g.cfg.MaxTicks > 0 && g.ticks >= g.cfg.MaxTicks:
		return core.StopTickLimit, true
	}
	return "", false
}

// Stop asks the generation to end at the next ShouldStop check.
func (g *Generation) Stop() {
	g.stop.Store(true)
}

// Finish freezes the generation. Further calls to Tick panic.
func (g *Generation) Finish(reason core.StopReason) {
	if g.state == finished {
		return
	}
	g.state = finished
	g.stopReason = reason
	g.end = g.cfg.Clock()
}

// Finished reports whether Finish was called.
func (g *Generation) Finished() bool { return g.state == finished }

// AliveCount returns the number of vehicles that have not crashed.
func (g *Generation) AliveCount() int {
	n := 0
	for _, v := range g.vehicles {
		if v.Alive() {
			n++
		}
	}
	return n
}

// FinishedCount returns the number of vehicles that reached the finish.
func (g *Generation) FinishedCount() int {
	n := 0
	for _, v := range g.vehicles {
		if v.Finished() {
			n++
		}
	}
	return n
}

// CrashCount returns the number of crashed vehicles.
func (g *Generation) CrashCount() int {
	return len(g.vehicles) - g.AliveCount()
}

func (g *Generation) Fitness(i int) float64 { return g.fitness[i] }

// Fitnesses returns a copy of the per-agent fitness values.
func (g *Generation) Fitnesses() []float64 {
	out := make([]float64, len(g.fitness))
	copy(out, g.fitness)
	return out
}

func (g *Generation) Leader() int                  { return g.leader }
func (g *Generation) BestFitness() float64         { return g.bestFitness }
func (g *Generation) Vehicles() []*vehicle.Vehicle { return g.vehicles }
func (g *Generation) Ticks() int                   { return g.ticks }
func (g *Generation) StartTime() time.Time         { return g.start }
func (g *Generation) StopReason() core.StopReason  { return g.stopReason }

// Result summarizes the generation for reporting.
func (g *Generation) Result() core.GenerationResult {
	end := g.end
	if end.IsZero() {
		end = g.cfg.Clock()
	}

	res := core.GenerationResult{
		RunID:       g.cfg.RunID,
		Generation:  g.cfg.Index,
		StartedAt:   g.start,
		Duration:    end.Sub(g.start),
		Ticks:       g.ticks,
		BestFitness: g.bestFitness,
		Crashes:     g.CrashCount(),
		Finishes:    g.FinishedCount(),
		LeaderIndex: g.leader,
		StopReason:  g.stopReason,
		Agents:      make([]core.AgentResult, len(g.vehicles)),
	}

	sum := 0.0
	for i, v := range g.vehicles {
		f := g.fitness[i]
		sum += f
		if i == 0 || f > res.MaxFitness {
			res.MaxFitness = f
		}
		res.Agents[i] = core.AgentResult{
			Index:        i,
			Fitness:      f,
			Alive:        v.Alive(),
			Finished:     v.Finished(),
			Distance:     v.DistanceTraveled(),
			Speed:        v.Speed(),
			Heading:      v.Heading(),
			SpeedPenalty: v.SpeedPenalty(),
			Sensors:      v.SensorVector(),
			Path:         v.PathHistory(),
		}
	}
	res.AvgFitness = sum / float64(len(g.vehicles))
	if g.leader >= 0 {
		res.LeaderSensors = g.vehicles[g.leader].SensorVector()
	}
	return res
}

func argmax(out []float32) int {
	best := 0
	for i := 1; i < len(out); i++ {
		if out[i] > out[best] {
			best = i
		}
	}
	return best
}
