package convert

import (
	"encoding/json"
	"time"

	"github.com/neatdrive/simulator/internal/geo"
	"github.com/neatdrive/simulator/internal/model"
	"github.com/neatdrive/simulator/pkg/core"
	"gorm.io/datatypes"
)

// jsonToSensors is the inverse of sensorsToJSON. Malformed data yields zeros.
func jsonToSensors(data datatypes.JSON) [5]int {
	var s [5]int
	if len(data) > 0 {
		_ = json.Unmarshal(data, &s)
	}
	return s
}

// TrackToCore converts a GORM model.Track to a core.Track.
func TrackToCore(t model.Track) core.Track {
	return core.Track{
		ID:     t.ID,
		Name:   t.Name,
		Width:  t.Width,
		Height: t.Height,
		Metrics: core.TrackMetrics{
			Length: t.Length,
			Finish: core.FinishMarker{
				Position: core.Position2D{X: t.FinishX, Y: t.FinishY},
				Size:     t.FinishSize,
			},
		},
		Spawn: core.Pose{
			Position: core.Position2D{X: t.SpawnX, Y: t.SpawnY},
			Heading:  t.SpawnHeading,
			Size:     t.SpawnSize,
		},
	}
}

// RunToCore converts a GORM model.Run to a core.Run.
func RunToCore(r model.Run) core.Run {
	return core.Run{
		ID:               r.ID,
		Name:             r.Name,
		StartTime:        r.StartTime,
		PopulationSize:   r.PopulationSize,
		TimeLimit:        time.Duration(r.TimeLimitSeconds * float64(time.Second)),
		Seed:             r.Seed,
		ExtensionVersion: r.ExtensionVersion,
	}
}

// AgentResultToCore converts a GORM model.AgentResult to a core.AgentResult.
func AgentResultToCore(a model.AgentResult) core.AgentResult {
	res := core.AgentResult{
		Index:        a.Index,
		Fitness:      a.Fitness,
		Alive:        a.Alive,
		Finished:     a.Finished,
		Distance:     a.Distance,
		Speed:        a.Speed,
		Heading:      a.Heading,
		SpeedPenalty: a.SpeedPenalty,
		Sensors:      jsonToSensors(a.Sensors),
	}
	if !a.Path.IsEmpty() {
		res.Path = geo.PathFromLineString(a.Path)
	}
	return res
}

// GenerationToCore converts a GORM model.Generation to a core.GenerationResult.
func GenerationToCore(g model.Generation) core.GenerationResult {
	res := core.GenerationResult{
		RunID:         g.RunID,
		Generation:    g.Number,
		StartedAt:     g.StartedAt,
		Duration:      time.Duration(g.DurationMs) * time.Millisecond,
		Ticks:         g.Ticks,
		BestFitness:   g.BestFitness,
		MaxFitness:    g.MaxFitness,
		AvgFitness:    g.AvgFitness,
		Crashes:       g.Crashes,
		Finishes:      g.Finishes,
		LeaderIndex:   g.LeaderIndex,
		LeaderSensors: jsonToSensors(g.LeaderSensors),
		StopReason:    core.StopReason(g.StopReason),
	}
	if len(g.Agents) > 0 {
		res.Agents = make([]core.AgentResult, len(g.Agents))
		for i, a := range g.Agents {
			res.Agents[i] = AgentResultToCore(a)
		}
	}
	return res
}
