// Package vehicle implements per-agent kinematics, distance sensors and
// collision/finish detection against a raster track.
package vehicle

import (
	"fmt"
	"math"

	"github.com/neatdrive/simulator/internal/fitness"
	"github.com/neatdrive/simulator/pkg/core"
)

const (
	MinSpeed       = 3.0
	MaxSpeed       = 20.0
	DefaultSpeed   = 5.0
	AngleIncrement = 10.0
	SpeedIncrement = 1.0
	PenaltyStep    = 0.01
	DefaultSize    = 40.0
	FinishBonus    = 150.0

	// DefaultSensorRange matches the width of the original simulation window.
	DefaultSensorRange = 1280.0
)

// SensorCount is the number of distance rays.
const SensorCount = 5

// SensorAngles are the ray bearings relative to the heading, in degrees.
var SensorAngles = [SensorCount]float64{-90, -45, 0, 45, 90}

// cornerAngles are the bounding rectangle corner bearings relative to the heading.
var cornerAngles = [4]float64{30, 150, 210, 330}

// Surface is the raster a vehicle drives on.
type Surface interface {
	Width() int
	Height() int
	Blocked(x, y int) bool
}

// Scorer computes a vehicle's live reward.
type Scorer interface {
	Score(s fitness.State) float64
}

// Sensor is one ray-cast reading.
type Sensor struct {
	End      core.Position2D
	Distance float64
}

// Vehicle holds the continuous state of one agent.
type Vehicle struct {
	center  core.Position2D
	heading float64
	speed   float64
	size    float64

	alive    bool
	finished bool

	distance     float64
	speedPenalty float64

	sensors     [SensorCount]Sensor
	sensorCount int
	sensorRange float64

	corners [4]core.Position2D
	path    []core.Position2D

	finalReward float64
	hasFinal    bool

	scorer Scorer
}

// Option configures a Vehicle.
type Option func(*Vehicle)

// WithScorer sets the reward function used by Reward and CheckFinish.
func WithScorer(s Scorer) Option {
	return func(v *Vehicle) {
		v.scorer = s
	}
}

// WithSensorRange overrides the maximum ray length.
func WithSensorRange(r float64) Option {
	return func(v *Vehicle) {
		v.sensorRange = r
	}
}

// New creates a vehicle at the given spawn pose.
func New(pose core.Pose, opts ...Option) *Vehicle {
	size := pose.Size
	if size <= 0 {
		size = DefaultSize
	}
	v := &Vehicle{
		center:      pose.Position,
		heading:     pose.Heading,
		speed:       DefaultSpeed,
		size:        size,
		alive:       true,
		sensorRange: DefaultSensorRange,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.refreshCorners()
	return v
}

// ApplyAction changes heading or speed. Finished vehicles ignore actions.
// Pushing against a speed bound accumulates a penalty instead.
func (v *Vehicle) ApplyAction(a Action) {
	if !a.Valid() {
		panic(fmt.Sprintf("vehicle: invalid action %d", int(a)))
	}
	if v.finished {
		return
	}

	switch a {
	case TurnLeft:
		v.heading += AngleIncrement
	case TurnRight:
		v.heading -= AngleIncrement
	case Accelerate:
		if v.speed+SpeedIncrement <= MaxSpeed {
			v.speed += SpeedIncrement
		} else {
			v.speed = MaxSpeed
			v.speedPenalty += PenaltyStep
		}
	case Brake:
		if v.speed-SpeedIncrement >= MinSpeed {
			v.speed -= SpeedIncrement
		} else {
			v.speed = MinSpeed
			v.speedPenalty += PenaltyStep
		}
	}
}

// Step advances the vehicle by one tick, then checks collisions and recasts
// the sensors. Dead or finished vehicles do not move.
func (v *Vehicle) Step(s Surface) {
	if !v.alive || v.finished {
		return
	}

	rad := radians(360 - v.heading)
	v.center.X += math.Cos(rad) * v.speed
	v.center.Y += math.Sin(rad) * v.speed
	v.distance += v.speed
	v.path = append(v.path, v.center)

	v.refreshCorners()
	if v.collides(s) {
		v.alive = false
		return
	}

	for i, angle := range SensorAngles {
		v.sensors[i] = v.castRay(angle, s)
	}
	v.sensorCount = SensorCount
}

// CheckFinish marks the vehicle finished on its first overlap with the
// marker square and freezes its reward including the finish bonus.
func (v *Vehicle) CheckFinish(marker core.FinishMarker) bool {
	if !v.alive || v.finished {
		return false
	}

	half := v.size / 2
	mHalf := marker.Size / 2
	overlap := v.center.X-half < marker.Position.X+mHalf &&
		marker.Position.X-mHalf < v.center.X+half &&
		v.center.Y-half < marker.Position.Y+mHalf &&
		marker.Position.Y-mHalf < v.center.Y+half
	if !overlap {
		return false
	}

	v.finalReward = v.Reward() + FinishBonus
	v.hasFinal = true
	v.finished = true
	return true
}

// Reward returns the frozen final reward if the vehicle finished, otherwise
// the live score. Without a scorer the live score is 0.
func (v *Vehicle) Reward() float64 {
	if v.hasFinal {
		return v.finalReward
	}
	if v.scorer == nil {
		return 0
	}
	return v.scorer.Score(v)
}

// SensorVector returns the sensor distances, zero padded to SensorCount.
func (v *Vehicle) SensorVector() [SensorCount]int {
	var out [SensorCount]int
	for i := 0; i < v.sensorCount; i++ {
		out[i] = int(v.sensors[i].Distance)
	}
	return out
}

// Sensors returns the populated sensor readings.
func (v *Vehicle) Sensors() []Sensor {
	out := make([]Sensor, v.sensorCount)
	copy(out, v.sensors[:v.sensorCount])
	return out
}

// Corners returns the oriented bounding rectangle corners.
func (v *Vehicle) Corners() [4]core.Position2D { return v.corners }

// PathHistory returns a copy of the visited centers.
func (v *Vehicle) PathHistory() []core.Position2D {
	out := make([]core.Position2D, len(v.path))
	copy(out, v.path)
	return out
}

func (v *Vehicle) Center() core.Position2D   { return v.center }
func (v *Vehicle) Heading() float64          { return v.heading }
func (v *Vehicle) Speed() float64            { return v.speed }
func (v *Vehicle) Size() float64             { return v.size }
func (v *Vehicle) Alive() bool               { return v.alive }
func (v *Vehicle) Finished() bool            { return v.finished }
func (v *Vehicle) DistanceTraveled() float64 { return v.distance }
func (v *Vehicle) SpeedPenalty() float64     { return v.speedPenalty }

// Active reports whether the vehicle still takes part in the simulation.
func (v *Vehicle) Active() bool { return v.alive && !v.finished }

// Snapshot captures the vehicle's reportable state.
func (v *Vehicle) Snapshot() core.VehicleState {
	return core.VehicleState{
		Center:           v.center,
		Heading:          v.heading,
		Speed:            v.speed,
		Alive:            v.alive,
		Finished:         v.finished,
		DistanceTraveled: v.distance,
		SpeedPenalty:     v.speedPenalty,
		Sensors:          v.SensorVector(),
	}
}

func (v *Vehicle) refreshCorners() {
	half := v.size / 2
	for i, offset := range cornerAngles {
		rad := radians(360 - (v.heading + offset))
		v.corners[i] = core.Position2D{
			X: v.center.X + math.Cos(rad)*half,
			Y: v.center.Y + math.Sin(rad)*half,
		}
	}
}

func (v *Vehicle) collides(s Surface) bool {
	w, h := float64(s.Width()), float64(s.Height())
	for _, c := range v.corners {
		if c.X < 0 || c.X >= w || c.Y < 0 || c.Y >= h {
			return true
		}
		if s.Blocked(int(c.X), int(c.Y)) {
			return true
		}
	}
	return false
}

// castRay marches one pixel at a time from the vehicle center until it hits
// a blocked pixel, leaves the surface or exceeds the sensor range.
func (v *Vehicle) castRay(angle float64, s Surface) Sensor {
	rad := radians(360 - (v.heading + angle))
	cos, sin := math.Cos(rad), math.Sin(rad)

	cx, cy := int(v.center.X), int(v.center.Y)
	x, y := cx, cy
	for length := 1.0; !s.Blocked(x, y); length++ {
		x = int(float64(cx) + cos*length)
		y = int(float64(cy) + sin*length)
		if length > v.sensorRange {
			break
		}
	}

	return Sensor{
		End:      core.Position2D{X: float64(x), Y: float64(y)},
		Distance: math.Floor(math.Hypot(float64(x-cx), float64(y-cy))),
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
