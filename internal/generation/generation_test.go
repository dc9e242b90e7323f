package generation

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/neatdrive/simulator/internal/fitness"
	"github.com/neatdrive/simulator/internal/track"
	"github.com/neatdrive/simulator/internal/vehicle"
	"github.com/neatdrive/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type constController []float32

func (c constController) Evaluate([]float32) []float32 { return c }

var (
	accelerate = constController{0, 0, 1, 0}
	brake      = constController{0, 0, 0, 1}
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return t0 }

var spawn = core.Pose{Position: core.Position2D{X: 60, Y: 100.5}, Size: vehicle.DefaultSize}

func metrics() core.TrackMetrics {
	return core.TrackMetrics{
		Length: 1000,
		Finish: core.FinishMarker{Position: core.Position2D{X: 650, Y: 100.5}, Size: 40},
	}
}

func newGeneration(t *testing.T, cfg Config, controllers ...Controller) *Generation {
	t.Helper()
	if cfg.Clock == nil {
		cfg.Clock = fixedClock
	}
	scorer, err := fitness.New(metrics())
	require.NoError(t, err)
	g, err := New(cfg, controllers, spawn, scorer)
	require.NoError(t, err)
	return g
}

func openMask(t *testing.T) *track.Mask {
	t.Helper()
	m, err := track.NewMask(700, 200, track.Road)
	require.NoError(t, err)
	return m
}

func TestNew_NoAgents(t *testing.T) {
	_, err := New(Config{}, nil, spawn, nil)
	assert.ErrorIs(t, err, ErrNoAgents)
}

func TestNew_SpawnsAtPose(t *testing.T) {
	g := newGeneration(t, Config{}, accelerate, brake, accelerate)

	require.Len(t, g.Vehicles(), 3)
	for _, v := range g.Vehicles() {
		assert.Equal(t, spawn.Position, v.Center())
	}
	assert.Equal(t, -1, g.Leader())
	assert.Equal(t, 3, g.AliveCount())
	assert.Equal(t, t0, g.StartTime())
}

func TestTick_AppliesArgmax(t *testing.T) {
	g := newGeneration(t, Config{}, accelerate, brake, constController{1, 1, 0, 0})
	g.Tick()

	vs := g.Vehicles()
	assert.Equal(t, vehicle.DefaultSpeed+1, vs[0].Speed())
	assert.Equal(t, vehicle.DefaultSpeed-1, vs[1].Speed())
	// Ties go to the first index.
	assert.Equal(t, vehicle.AngleIncrement, vs[2].Heading())
	assert.Equal(t, 1, g.Ticks())
}

func TestTick_WrongOutputLengthPanics(t *testing.T) {
	g := newGeneration(t, Config{}, constController{1, 0})
	assert.Panics(t, g.Tick)
}

func TestTick_AfterFinishPanics(t *testing.T) {
	g := newGeneration(t, Config{}, accelerate)
	g.Finish(core.StopAborted)
	assert.True(t, g.Finished())
	assert.Panics(t, g.Tick)
}

func TestEvaluate_LeaderAndBest(t *testing.T) {
	g := newGeneration(t, Config{}, brake, accelerate, accelerate)
	mask := openMask(t)

	for i := 0; i < 10; i++ {
		g.Tick()
		g.StepAll(mask, metrics().Finish)
		g.Evaluate()
	}

	// Agents 1 and 2 drive identically; the first one leads.
	assert.Equal(t, 1, g.Leader())
	assert.Equal(t, g.Fitness(1), g.Fitness(2))
	assert.Greater(t, g.Fitness(1), g.Fitness(0))
	assert.Equal(t, g.Fitness(1), g.BestFitness())
	assert.Len(t, g.Fitnesses(), 3)
}

func TestShouldStop_TimeLimit(t *testing.T) {
	g := newGeneration(t, Config{TimeLimit: time.Minute}, accelerate)

	_, stop := g.ShouldStop(t0.Add(time.Minute))
	assert.False(t, stop)

	reason, stop := g.ShouldStop(t0.Add(time.Minute + time.Millisecond))
	assert.True(t, stop)
	assert.Equal(t, core.StopTimeLimit, reason)
}

func TestShouldStop_DefaultTimeLimit(t *testing.T) {
	g := newGeneration(t, Config{}, accelerate)

	reason, stop := g.ShouldStop(t0.Add(DefaultTimeLimit + time.Second))
	assert.True(t, stop)
	assert.Equal(t, core.StopTimeLimit, reason)
}

func TestShouldStop_TickLimit(t *testing.T) {
	g := newGeneration(t, Config{MaxTicks: 2}, accelerate)
	g.Tick()
	_, stop := g.ShouldStop(t0)
	assert.False(t, stop)

	g.Tick()
	reason, stop := g.ShouldStop(t0)
	assert.True(t, stop)
	assert.Equal(t, core.StopTickLimit, reason)
}

func TestShouldStop_AllCrashed(t *testing.T) {
	g := newGeneration(t, Config{}, accelerate, accelerate)
	mask := openMask(t)
	mask.FillRect(image.Rect(100, 0, 700, 200), track.NonDrivable)

	for i := 0; i < 20 && g.AliveCount() > 0; i++ {
		g.Tick()
		g.StepAll(mask, metrics().Finish)
	}

	reason, stop := g.ShouldStop(t0)
	assert.True(t, stop)
	assert.Equal(t, core.StopAllCrashed, reason)
	assert.Equal(t, 2, g.CrashCount())
}

func TestStepAll_CrashesReachMeter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { mp.Shutdown(context.Background()) })

	g := newGeneration(t, Config{Index: 4, Meter: mp.Meter(InstrumentationName)}, accelerate, accelerate)
	mask := openMask(t)
	mask.FillRect(image.Rect(100, 0, 700, 200), track.NonDrivable)

	for i := 0; i < 20 && g.AliveCount() > 0; i++ {
		g.Tick()
		g.StepAll(mask, metrics().Finish)
	}
	require.Equal(t, 2, g.CrashCount())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	values := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok, m.Name)
		require.Len(t, sum.DataPoints, 1, m.Name)
		gen, ok := sum.DataPoints[0].Attributes.Value("generation")
		require.True(t, ok)
		assert.Equal(t, int64(4), gen.AsInt64())
		values[m.Name] = sum.DataPoints[0].Value
	}
	assert.Equal(t, int64(2), values["generation.crashes"])
	assert.Equal(t, int64(g.Ticks()), values["generation.ticks"])
	assert.NotContains(t, values, "generation.finishes")
}

func TestNew_SensorRangeCapsReadings(t *testing.T) {
	mask := openMask(t)
	short := newGeneration(t, Config{SensorRange: 50}, brake)
	long := newGeneration(t, Config{}, brake)

	for _, g := range []*Generation{short, long} {
		g.Tick()
		g.StepAll(mask, metrics().Finish)
	}

	for _, d := range short.Vehicles()[0].SensorVector() {
		assert.LessOrEqual(t, d, 51)
	}
	// the forward ray reaches the right edge at the default range
	assert.Greater(t, maxReading(long.Vehicles()[0].SensorVector()), 51)
	assert.Greater(t, maxReading(short.Vehicles()[0].SensorVector()), 0)
}

func maxReading(sensors [vehicle.SensorCount]int) int {
	best := 0
	for _, d := range sensors {
		best = max(best, d)
	}
	return best
}

func TestShouldStop_AllFinished(t *testing.T) {
	g := newGeneration(t, Config{}, accelerate, brake)
	marker := core.FinishMarker{Position: core.Position2D{X: 70, Y: 100.5}, Size: 40}

	g.Tick()
	g.StepAll(openMask(t), marker)
	g.Evaluate()

	reason, stop := g.ShouldStop(t0)
	assert.True(t, stop)
	assert.Equal(t, core.StopAllFinished, reason)
	assert.Equal(t, 2, g.FinishedCount())
	assert.Equal(t, -1, g.Leader())
	assert.Greater(t, g.BestFitness(), vehicle.FinishBonus)
}

func TestShouldStop_StopFlag(t *testing.T) {
	g := newGeneration(t, Config{}, accelerate)
	g.Stop()

	reason, stop := g.ShouldStop(t0)
	assert.True(t, stop)
	assert.Equal(t, core.StopAborted, reason)
}

func TestStepAll_ParallelMatchesSequential(t *testing.T) {
	controllers := []Controller{accelerate, brake, constController{1, 0, 0, 0}, constController{0, 1, 0, 0}}
	seq := newGeneration(t, Config{}, controllers...)
	par := newGeneration(t, Config{Parallel: true}, controllers...)
	mask := openMask(t)

	for i := 0; i < 30; i++ {
		for _, g := range []*Generation{seq, par} {
			g.Tick()
			g.StepAll(mask, metrics().Finish)
			g.Evaluate()
		}
	}

	assert.Equal(t, seq.Fitnesses(), par.Fitnesses())
	for i := range controllers {
		assert.Equal(t, seq.Vehicles()[i].Snapshot(), par.Vehicles()[i].Snapshot())
	}
}

func TestResult(t *testing.T) {
	now := t0
	clock := func() time.Time { return now }
	g := newGeneration(t, Config{RunID: 7, Index: 3, Clock: clock}, accelerate, brake)
	mask := openMask(t)

	for i := 0; i < 5; i++ {
		g.Tick()
		g.StepAll(mask, metrics().Finish)
		g.Evaluate()
	}
	now = t0.Add(2 * time.Second)
	g.Finish(core.StopTimeLimit)

	res := g.Result()
	assert.Equal(t, uint(7), res.RunID)
	assert.Equal(t, 3, res.Generation)
	assert.Equal(t, 5, res.Ticks)
	assert.Equal(t, 2*time.Second, res.Duration)
	assert.Equal(t, core.StopTimeLimit, res.StopReason)
	assert.Equal(t, 0, res.LeaderIndex)
	assert.Equal(t, g.Vehicles()[0].SensorVector(), res.LeaderSensors)
	assert.InDelta(t, (g.Fitness(0)+g.Fitness(1))/2, res.AvgFitness, 1e-9)
	assert.Equal(t, g.Fitness(0), res.MaxFitness)
	require.Len(t, res.Agents, 2)
	assert.Len(t, res.Agents[0].Path, 5)
	assert.Zero(t, res.Crashes)
}
